package domain

// Credential is the opaque bearer token issued by the account service.
type Credential string

func (c Credential) Empty() bool {
	return c == ""
}

func (c Credential) String() string {
	return string(c)
}

// Bearer renders the credential with the "Bearer " prefix expected by some endpoints.
func (c Credential) Bearer() string {
	return "Bearer " + string(c)
}
