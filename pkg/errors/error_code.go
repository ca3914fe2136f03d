package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSignal        ErrorCode = 102
	ErrCodeInvalidOrder         ErrorCode = 103
	ErrCodeInvalidPosition      ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Exchange errors (200-299)
	ErrCodeExchangeUnavailable ErrorCode = 200
	ErrCodeExchangeRequest     ErrorCode = 201
	ErrCodeExchangeAuth        ErrorCode = 202
	ErrCodeOrderNotFound       ErrorCode = 203
	ErrCodeUnsupportedExchange ErrorCode = 204
	ErrCodeExchangeTimeout     ErrorCode = 205
	ErrCodeMarketDataFetch     ErrorCode = 206
	ErrCodeMarketDataParse     ErrorCode = 207

	// Execution errors (300-399)
	ErrCodeOrderFailed       ErrorCode = 300
	ErrCodeOrderRejected     ErrorCode = 301
	ErrCodeRetriesExhausted  ErrorCode = 302
	ErrCodeOrderNotPending   ErrorCode = 303
	ErrCodeIllegalTransition ErrorCode = 304

	// Risk errors (400-499)
	ErrCodeTradingDisabled ErrorCode = 400
	ErrCodeRiskRejected    ErrorCode = 401

	// Position errors (500-599)
	ErrCodePositionNotFound  ErrorCode = 500
	ErrCodePositionConflict  ErrorCode = 501
	ErrCodePositionLimit     ErrorCode = 502
	ErrCodePositionDirection ErrorCode = 503

	// Feed errors (600-699)
	ErrCodeFeedClosed        ErrorCode = 600
	ErrCodeFeedConnectFailed ErrorCode = 601
	ErrCodeUnsupportedFeed   ErrorCode = 602

	// Engine errors (700-799)
	ErrCodeEngineInitFailed  ErrorCode = 700
	ErrCodeEngineNotRunning  ErrorCode = 701
	ErrCodeStrategyNotLoaded ErrorCode = 702
	ErrCodeSnapshotFailed    ErrorCode = 703

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)
