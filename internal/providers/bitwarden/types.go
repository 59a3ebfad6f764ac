package bitwarden

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Service selects which Bitwarden product a provider talks to.
type Service int

const (
	// PasswordManager is the typed-item vault driven by the bw CLI.
	PasswordManager Service = iota
	// SecretsManager is the flat key/value store driven by the bws CLI.
	SecretsManager
)

func (s Service) String() string {
	switch s {
	case PasswordManager:
		return "password-manager"
	case SecretsManager:
		return "secrets-manager"
	default:
		return fmt.Sprintf("service(%d)", int(s))
	}
}

// ItemType is the numeric type tag of a vault item.
type ItemType int

const (
	TypeLogin      ItemType = 1
	TypeSecureNote ItemType = 2
	TypeCard       ItemType = 3
	TypeIdentity   ItemType = 4
	TypeSSHKey     ItemType = 5
)

var itemTypeNames = map[string]ItemType{
	"login":       TypeLogin,
	"securenote":  TypeSecureNote,
	"note":        TypeSecureNote,
	"secure_note": TypeSecureNote,
	"card":        TypeCard,
	"identity":    TypeIdentity,
	"sshkey":      TypeSSHKey,
	"ssh_key":     TypeSSHKey,
	"ssh":         TypeSSHKey,
}

// ParseItemType accepts the names used in URIs and BITWARDEN_DEFAULT_TYPE,
// case-insensitively.
func ParseItemType(s string) (ItemType, bool) {
	t, ok := itemTypeNames[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Valid reports whether t is one of the five known item types.
func (t ItemType) Valid() bool {
	return t >= TypeLogin && t <= TypeSSHKey
}

func (t ItemType) String() string {
	switch t {
	case TypeLogin:
		return "login"
	case TypeSecureNote:
		return "securenote"
	case TypeCard:
		return "card"
	case TypeIdentity:
		return "identity"
	case TypeSSHKey:
		return "sshkey"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// UnmarshalJSON rejects type tags outside the known set.
func (t *ItemType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid item type %s: %w", data, err)
	}
	if !ItemType(n).Valid() {
		return fmt.Errorf("unknown item type %d", n)
	}
	*t = ItemType(n)
	return nil
}

// FieldType is the kind of a custom field.
type FieldType int

const (
	FieldText    FieldType = 0
	FieldHidden  FieldType = 1
	FieldBoolean FieldType = 2
	// FieldLinked fields point at another property of the item. They are
	// read but never created.
	FieldLinked FieldType = 3
)

var hiddenFieldKeywords = []string{"password", "secret", "token", "key", "value", "code", "cvv", "cvc"}

// FieldTypeFor infers the kind of a new custom field from its name.
func FieldTypeFor(name string) FieldType {
	lower := strings.ToLower(name)
	for _, kw := range hiddenFieldKeywords {
		if strings.Contains(lower, kw) {
			return FieldHidden
		}
	}
	return FieldText
}

// Item is a Password Manager vault item as printed by bw.
type Item struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	FolderID       string      `json:"folderId"`
	CollectionIDs  []string    `json:"collectionIds"`
	Type           ItemType    `json:"type"`
	Name           string      `json:"name"`
	Notes          string      `json:"notes"`
	Favorite       bool        `json:"favorite"`
	Fields         []Field     `json:"fields"`
	Login          *Login      `json:"login"`
	SecureNote     *SecureNote `json:"secureNote"`
	Card           *Card       `json:"card"`
	Identity       *Identity   `json:"identity"`
	SSHKey         *SSHKey     `json:"sshKey"`
	RevisionDate   string      `json:"revisionDate"`
	CreationDate   string      `json:"creationDate"`
	DeletedDate    string      `json:"deletedDate"`
}

// Login holds the typed payload of a login item.
type Login struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Totp     string `json:"totp,omitempty"`
	URIs     []URI  `json:"uris,omitempty"`
}

// URI is a website associated with a login.
type URI struct {
	Match *int   `json:"match"`
	URI   string `json:"uri"`
}

// SecureNote holds the typed payload of a secure note. The text itself lives
// in Item.Notes.
type SecureNote struct {
	Type int `json:"type"`
}

// Card holds the typed payload of a payment card.
type Card struct {
	CardholderName string `json:"cardholderName,omitempty"`
	Brand          string `json:"brand,omitempty"`
	Number         string `json:"number,omitempty"`
	ExpMonth       string `json:"expMonth,omitempty"`
	ExpYear        string `json:"expYear,omitempty"`
	Code           string `json:"code,omitempty"`
}

// Identity holds the typed payload of an identity.
type Identity struct {
	Title      string `json:"title,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Company    string `json:"company,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Username   string `json:"username,omitempty"`
}

// SSHKey holds the typed payload of an SSH key item.
type SSHKey struct {
	PrivateKey     string `json:"privateKey,omitempty"`
	PublicKey      string `json:"publicKey,omitempty"`
	KeyFingerprint string `json:"keyFingerprint,omitempty"`
}

// Field is a free-form custom field attached to an item.
type Field struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Type     FieldType `json:"type"`
	LinkedID *int      `json:"linkedId,omitempty"`
}

// Secret is a Secrets Manager entry as printed by bws.
type Secret struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	ProjectID      string `json:"projectId"`
	Key            string `json:"key"`
	Value          string `json:"value"`
	Note           string `json:"note"`
	CreationDate   string `json:"creationDate"`
	RevisionDate   string `json:"revisionDate"`
}

// status is the subset of `bw status` output we use.
type status struct {
	ServerURL string `json:"serverUrl"`
	UserEmail string `json:"userEmail"`
	Status    string `json:"status"`
}
