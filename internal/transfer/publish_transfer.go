package transfer

// Credential is what an adapter needs to publish for one account. The access
// token is already decrypted; adapters must never log it.
type Credential struct {
	Platform    string
	AccountID   string
	AccessToken string
}

type PublishInput struct {
	Caption  string
	MediaURL string
	PageID   string
}

type PublishResult struct {
	ExternalPostID string
	PageID         string
}
