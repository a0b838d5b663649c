package cursor

import (
	"go.uber.org/zap"
)

type settings struct {
	headerRow    int
	hasHeader    bool
	activeSheet  int
	logger       *zap.Logger
	countCache   bool
	ownsWorkbook bool
}

func defaultSettings() settings {
	return settings{countCache: true}
}

// Option configures a Cursor.
type Option func(*settings)

// WithHeaderRow makes the zero-based logical row n the header row. Its
// values become the column headers and it is never yielded as data.
func WithHeaderRow(n int) Option {
	return func(s *settings) {
		s.headerRow = n
		s.hasHeader = true
	}
}

// WithActiveSheet selects the sheet whose Index equals i. The default is 0.
func WithActiveSheet(i int) Option {
	return func(s *settings) {
		s.activeSheet = i
	}
}

// WithLogger sets the logger. The default is the global logger tagged with
// component=row_cursor.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithCountCache toggles caching of Count results. Caching is on by default.
func WithCountCache(enabled bool) Option {
	return func(s *settings) {
		s.countCache = enabled
	}
}

// OwnWorkbook makes Close release the workbook as well as the row iterator.
func OwnWorkbook() Option {
	return func(s *settings) {
		s.ownsWorkbook = true
	}
}
