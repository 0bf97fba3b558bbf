package commands

// Defaults for list-style output
const (
	DefaultSearchLimit = 20
	DefaultQueryWidth  = 60
)

// Error messages
const (
	ErrHistoryUnavailable   = "history unavailable"
	ErrDoctorUnavailable    = "doctor service unavailable"
	ErrDocumentsUnavailable = "document service unavailable"
	ErrKeyRequired          = "--key is required"
	ErrQueryRequired        = "--query required"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoHistoryRecorded        = "No analyses recorded yet."
	MsgNoMatches                = "No matching analyses."
	MsgNoDocuments              = "No documents uploaded."
	MsgHistoryCleared           = "History cleared."
)
