// Package backup builds and reads the portable encrypted vault backup.
//
// A backup is a JSON container holding a format version, the base64 salt
// and nonce, and one AES-GCM sealed blob. The blob is the JSON snapshot of
// the whole vault in decrypted form. The key is derived from the password
// and the container's own salt, so the file can be opened anywhere with just
// the password; it is unrelated to the live session key.
package backup

// FormatVersion is the only container version this package reads and writes.
const FormatVersion = 1

// Container is the outer file structure.
type Container struct {
	Version int    `json:"v"`
	Salt    string `json:"s"`
	Nonce   string `json:"iv"`
	Data    string `json:"d"`
}

// Payload is the decrypted snapshot.
type Payload struct {
	Timestamp int64          `json:"timestamp"`
	Folders   []FolderEntry  `json:"folders"`
	Accounts  []AccountEntry `json:"accounts"`
}

// FolderEntry records a folder by id and name. Only the name is used on import.
type FolderEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AccountEntry is one credential. FolderName is omitted for unfiled credentials.
type AccountEntry struct {
	ServiceName string  `json:"serviceName"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	URL         string  `json:"url"`
	Notes       string  `json:"notes"`
	FolderName  *string `json:"folderName,omitempty"`
}
