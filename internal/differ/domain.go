package differ

const (
	// FullContextLines is the context used when generating raw diffs, large
	// enough to include whole files in practice.
	FullContextLines = 1000
	// ReducedContextLines matches git's default.
	ReducedContextLines = 3
)

// Level is how much context a reduced diff kept.
type Level int

const (
	LevelFullContext Level = iota
	LevelReducedContext
	LevelNoContext
)

func (l Level) String() string {
	switch l {
	case LevelFullContext:
		return "full-context"
	case LevelReducedContext:
		return "reduced-context"
	case LevelNoContext:
		return "no-context"
	default:
		return "unknown"
	}
}

// Limits bounds a diff. A zero field is unlimited.
type Limits struct {
	MaxBytes int
	MaxFiles int
}

func (l Limits) exceedsBytes(n int) bool {
	return l.MaxBytes > 0 && n > l.MaxBytes
}

func (l Limits) exceedsFiles(n int) bool {
	return l.MaxFiles > 0 && n > l.MaxFiles
}

// Result is a diff that fits the limits.
type Result struct {
	Diff  string
	Level Level
	Files int
}
