package domain

// OtpRecord is a single-use numeric passcode bound to an identifier.
// PK: identifier (case-normalized email), SK: code.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL; it is always
// IssuedAt + the configured code lifetime (10 minutes).
//
// More than one live record may exist per identifier at a time: reissuing
// does not invalidate earlier codes, verification matches on the
// (identifier, code) pair. Consumed is monotonic — once true the record is
// permanently inert.
type OtpRecord struct {
	Identifier  string      `json:"identifier" dynamodbav:"identifier"`
	Code        string      `json:"-" dynamodbav:"code"`
	IssuedAt    int64       `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt   int64       `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	Consumed    bool        `json:"-" dynamodbav:"consumed"`
	AccountType AccountType `json:"account_type" dynamodbav:"account_type"`
	Aux         OtpAux      `json:"-" dynamodbav:"aux"`
}

// OtpAux is the opaque payload carried from signup to verification so the
// identity can be created once the code is confirmed.
type OtpAux struct {
	PasswordHash string `dynamodbav:"password_hash"`
	SourceURL    string `dynamodbav:"source_url"`
}
