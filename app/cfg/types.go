package cfg

type Cfg struct {
	// Storage layout
	DataDir          string
	FinalDir         string
	MoveAfterCombine bool
	HistoryDB        string

	// Producer configuration
	ProducersDir string
	SessionFile  string

	// Sync pacing
	IntervalSec     int
	ProducerSpacing int
	PageSpacing     int

	// HTTP server
	Port         string
	APIAccessKey string

	// External tooling
	FFmpegPath string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
