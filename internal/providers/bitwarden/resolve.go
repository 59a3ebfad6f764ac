package bitwarden

import "strings"

// fieldRule maps a keyword found in a secret key onto an item field.
type fieldRule struct {
	keyword string
	field   string
}

// typedField is a well-known field of one item type: where it sits in the
// item document and how to read it from a decoded Item.
type typedField struct {
	section string // "" for top-level keys
	key     string
	read    func(*Item) string
}

// typedFields lists the canonical well-known fields per item type.
var typedFields = map[ItemType]map[string]typedField{
	TypeLogin: {
		"password": {"login", "password", func(it *Item) string { return it.login().Password }},
		"username": {"login", "username", func(it *Item) string { return it.login().Username }},
		"totp":     {"login", "totp", func(it *Item) string { return it.login().Totp }},
	},
	TypeSecureNote: {
		"notes": {"", "notes", func(it *Item) string { return it.Notes }},
	},
	TypeCard: {
		"number":     {"card", "number", func(it *Item) string { return it.card().Number }},
		"code":       {"card", "code", func(it *Item) string { return it.card().Code }},
		"cardholder": {"card", "cardholderName", func(it *Item) string { return it.card().CardholderName }},
		"brand":      {"card", "brand", func(it *Item) string { return it.card().Brand }},
		"expmonth":   {"card", "expMonth", func(it *Item) string { return it.card().ExpMonth }},
		"expyear":    {"card", "expYear", func(it *Item) string { return it.card().ExpYear }},
	},
	TypeIdentity: {
		"email":     {"identity", "email", func(it *Item) string { return it.identity().Email }},
		"username":  {"identity", "username", func(it *Item) string { return it.identity().Username }},
		"phone":     {"identity", "phone", func(it *Item) string { return it.identity().Phone }},
		"firstname": {"identity", "firstName", func(it *Item) string { return it.identity().FirstName }},
		"lastname":  {"identity", "lastName", func(it *Item) string { return it.identity().LastName }},
		"company":   {"identity", "company", func(it *Item) string { return it.identity().Company }},
	},
	TypeSSHKey: {
		"private_key": {"sshKey", "privateKey", func(it *Item) string { return it.sshKey().PrivateKey }},
		"public_key":  {"sshKey", "publicKey", func(it *Item) string { return it.sshKey().PublicKey }},
		"fingerprint": {"sshKey", "keyFingerprint", func(it *Item) string { return it.sshKey().KeyFingerprint }},
	},
}

// fieldAliases maps alternative spellings onto canonical typedFields names.
var fieldAliases = map[ItemType]map[string]string{
	TypeCard: {
		"cvv":       "code",
		"cvc":       "code",
		"name":      "cardholder",
		"exp_month": "expmonth",
		"exp_year":  "expyear",
	},
	TypeIdentity: {
		"first_name": "firstname",
		"last_name":  "lastname",
	},
	TypeSSHKey: {
		"privatekey":      "private_key",
		"private":         "private_key",
		"publickey":       "public_key",
		"public":          "public_key",
		"key_fingerprint": "fingerprint",
	},
}

// readRules infer the field to read from the secret key, in priority order.
// A field that is not a typed field of the item names a custom field, which
// mirrors where writeRules store the value.
var readRules = map[ItemType][]fieldRule{
	TypeLogin: {
		{"password", "password"},
		{"pass", "password"},
		{"secret", "password"},
		{"token", "password"},
		{"user", "username"},
		{"login", "username"},
		{"totp", "totp"},
		{"2fa", "totp"},
		{"mfa", "totp"},
	},
	TypeCard: {
		{"number", "number"},
		{"card", "number"},
		{"code", "code"},
		{"cvv", "code"},
		{"cvc", "code"},
		{"cardholder", "cardholder"},
		{"name", "cardholder"},
	},
	TypeIdentity: {
		{"email", "email"},
		{"mail", "email"},
		{"phone", "phone"},
		{"tel", "phone"},
		{"user", "username"},
		{"login", "username"},
	},
	TypeSSHKey: {
		{"public", "public_key"},
		{"pub", "public_key"},
		{"fingerprint", "fingerprint"},
		{"finger", "fingerprint"},
		{"passphrase", "passphrase"},
		{"password", "passphrase"},
	},
}

// readDefaults are tried in order when no rule matched. Names that are not
// typed fields refer to custom fields.
var readDefaults = map[ItemType][]string{
	TypeLogin:      {"password", "username"},
	TypeSecureNote: {"value", "notes"},
	TypeCard:       {"number"},
	TypeIdentity:   {"email", "username"},
	TypeSSHKey:     {"private_key"},
}

// writeRules choose the field a new value is written to when no explicit
// field is configured.
var writeRules = map[ItemType][]fieldRule{
	TypeLogin: {
		{"user", "username"},
		{"login", "username"},
		{"totp", "totp"},
		{"2fa", "totp"},
		{"mfa", "totp"},
	},
	TypeCard: {
		{"code", "code"},
		{"cvv", "code"},
		{"cvc", "code"},
		{"name", "cardholder"},
		{"cardholder", "cardholder"},
		{"number", "number"},
		{"card", "number"},
	},
	TypeIdentity: {
		{"phone", "phone"},
		{"tel", "phone"},
		{"user", "username"},
		{"login", "username"},
		{"email", "email"},
		{"mail", "email"},
	},
	TypeSSHKey: {
		{"public", "public_key"},
		{"pub", "public_key"},
		{"passphrase", "passphrase"},
		{"password", "passphrase"},
		{"private", "private_key"},
		{"key", "private_key"},
	},
}

// writeDefaults is the fallback write target; "" means the key itself
// becomes a custom field name.
var writeDefaults = map[ItemType]string{
	TypeLogin:      "password",
	TypeSecureNote: "value",
	TypeCard:       "",
	TypeIdentity:   "",
	TypeSSHKey:     "private_key",
}

// CanonicalField resolves name (case-insensitive, aliases allowed) to a
// well-known field of t.
func CanonicalField(t ItemType, name string) (string, bool) {
	lower := strings.ToLower(name)
	if canonical, ok := fieldAliases[t][lower]; ok {
		lower = canonical
	}
	_, ok := typedFields[t][lower]
	return lower, ok
}

// ResolveField picks the value a get of key should return from item.
//
// A non-empty override is authoritative: it names a well-known field or a
// custom field, and a miss is reported as not found. Without an override the
// key is matched against the type's keyword rules, then the type's default
// fields, then the custom fields.
func ResolveField(item *Item, key, override string) (string, bool) {
	if override != "" {
		return lookupField(item, override)
	}

	hint := strings.ToLower(key)
	for _, rule := range readRules[item.Type] {
		if !strings.Contains(hint, rule.keyword) {
			continue
		}
		if v, ok := lookupField(item, rule.field); ok {
			return v, true
		}
	}

	for _, name := range readDefaults[item.Type] {
		if v, ok := lookupField(item, name); ok {
			return v, true
		}
	}

	return customField(item.Fields, key)
}

// WriteTarget names the field a set of key writes when no explicit field is
// configured. The result is either a canonical typed field of t or a custom
// field name.
func WriteTarget(t ItemType, key string) string {
	hint := strings.ToLower(key)
	for _, rule := range writeRules[t] {
		if strings.Contains(hint, rule.keyword) {
			return rule.field
		}
	}
	if def := writeDefaults[t]; def != "" {
		return def
	}
	return key
}

func lookupField(item *Item, name string) (string, bool) {
	if canonical, ok := CanonicalField(item.Type, name); ok {
		v := typedFields[item.Type][canonical].read(item)
		return v, v != ""
	}
	return customField(item.Fields, name)
}

// customField finds a custom field by exact case-insensitive name, then by
// substring.
func customField(fields []Field, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	lower := strings.ToLower(name)

	for _, f := range fields {
		if strings.ToLower(f.Name) == lower {
			return f.Value, f.Value != ""
		}
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), lower) {
			return f.Value, f.Value != ""
		}
	}
	return "", false
}

func (it *Item) login() Login {
	if it.Login == nil {
		return Login{}
	}
	return *it.Login
}

func (it *Item) card() Card {
	if it.Card == nil {
		return Card{}
	}
	return *it.Card
}

func (it *Item) identity() Identity {
	if it.Identity == nil {
		return Identity{}
	}
	return *it.Identity
}

func (it *Item) sshKey() SSHKey {
	if it.SSHKey == nil {
		return SSHKey{}
	}
	return *it.SSHKey
}
