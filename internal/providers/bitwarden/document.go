package bitwarden

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed item.schema.json
var itemSchemaJSON []byte

var itemSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(itemSchemaJSON))
})

// payloadSections names the JSON property holding each type's payload.
var payloadSections = map[ItemType]string{
	TypeLogin:      "login",
	TypeSecureNote: "secureNote",
	TypeCard:       "card",
	TypeIdentity:   "identity",
	TypeSSHKey:     "sshKey",
}

// document is a vault item as generic JSON. Updates are applied to the
// document bw returned rather than to an Item so that properties this
// package does not model (password history, attachments, reprompt, ...)
// survive the round trip through bw edit.
type document map[string]any

// newDocument builds the minimal document for a new item of type t.
func newDocument(t ItemType, name, notes string) document {
	doc := document{
		"type":   int(t),
		"name":   name,
		"notes":  notes,
		"fields": []any{},
	}

	payload := map[string]any{}
	if t == TypeSecureNote {
		payload["type"] = 0
	}
	doc[payloadSections[t]] = payload

	return doc
}

func decodeDocument(data []byte) (document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden item: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("failed to parse Bitwarden item: empty document")
	}
	return doc, nil
}

// itemType reads the type tag.
func (d document) itemType() (ItemType, error) {
	var n int
	switch v := d["type"].(type) {
	case int:
		n = v
	case float64:
		n = int(v)
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, fmt.Errorf("invalid item type %q", v)
		}
		n = i
	default:
		return 0, fmt.Errorf("item has no type")
	}

	if !ItemType(n).Valid() {
		return 0, fmt.Errorf("unknown item type %d", n)
	}
	return ItemType(n), nil
}

// setField writes value into the well-known field of t named field, or into
// the custom field called field.
func (d document) setField(t ItemType, field, value string) error {
	canonical, ok := CanonicalField(t, field)
	if !ok {
		return d.upsertCustomField(field, value)
	}

	tf := typedFields[t][canonical]
	if tf.section == "" {
		d[tf.key] = value
		return nil
	}

	section, _ := d[tf.section].(map[string]any)
	if section == nil {
		section = map[string]any{}
		d[tf.section] = section
	}
	section[tf.key] = value
	return nil
}

// upsertCustomField overwrites the value of the custom field called name
// (exact match) or appends a new field whose kind is inferred from name.
func (d document) upsertCustomField(name, value string) error {
	var fields []any
	switch v := d["fields"].(type) {
	case nil:
	case []any:
		fields = v
	default:
		return fmt.Errorf("invalid fields array in Bitwarden item")
	}

	for _, f := range fields {
		if m, ok := f.(map[string]any); ok && m["name"] == name {
			m["value"] = value
			return nil
		}
	}

	d["fields"] = append(fields, map[string]any{
		"name":  name,
		"value": value,
		"type":  int(FieldTypeFor(name)),
	})
	return nil
}

// setOwnership attaches organization and collection ids when configured.
func (d document) setOwnership(organizationID, collectionID string) {
	if organizationID != "" {
		d["organizationId"] = organizationID
	}
	if collectionID != "" {
		d["collectionIds"] = []any{collectionID}
	}
}

// validate checks d against the embedded item schema: a known type tag, a
// name, and exactly the payload matching the tag.
func (d document) validate() error {
	schema, err := itemSchema()
	if err != nil {
		return fmt.Errorf("failed to load item schema: %w", err)
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode Bitwarden item: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("invalid item document:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return nil
}

// encode renders d the way bw create and bw edit read it from stdin.
func (d document) encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Bitwarden item: %w", err)
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}
