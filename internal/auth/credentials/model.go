package credentials

// Credential is the stored password record for one user.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	HashVersion  string
}
