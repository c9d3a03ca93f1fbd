package dto

// ProtectResponse carries the protected value. The field name is fixed by the
// wire protocol.
type ProtectResponse struct {
	ProtectedData string `json:"protected_data"`
}

// RevealResponse carries the revealed plaintext. The stub uses "data", the
// field name most of the vendor material agrees on; clients treat it as
// configurable.
type RevealResponse struct {
	Data string `json:"data"`
}
