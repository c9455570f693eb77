package constants

import "time"

const (
	AppName            = "microhabits"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/microhabits/microhabits.db"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeDisplayFormat is used for instants printed to the terminal
	TimeDisplayFormat = "2006-01-02 15:04:05"

	// TimestampFormat is the fixed-width UTC layout for instants stored as text, so that
	// lexical order matches chronological order
	TimestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

	// Habit limits
	FreeTierHabitLimit = 3
	MaxHabitNameLength = 100
	MaxEmojiLength     = 16

	// Reconciliation
	DefaultReconcileInterval = time.Minute
	MinReconcileInterval     = time.Second
	ToggleConflictRetries    = 3

	// HTTP API
	DefaultListenAddr = ":3000"
	UserIDHeader      = "X-User-ID"
	ShutdownTimeout   = 30 * time.Second

	// SessionIdleTimeout ends an owner's loop when no request has been seen for this long
	SessionIdleTimeout = 30 * time.Minute

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "microhabits-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.microhabits"
	TrayProcessPrefix      = "microhabits-tray"
)

// Environment variables
const (
	EnvConfig       = "MICROHABITS_CONFIG"
	EnvUser         = "MICROHABITS_USER"
	EnvTimezone     = "MICROHABITS_TIMEZONE"
	EnvDBConnection = "MICROHABITS_DB_CONNECTION"
)
