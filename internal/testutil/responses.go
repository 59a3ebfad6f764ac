package testutil

import "fmt"

// BitwardenMockResponses provides canned output of the bw CLI.
type BitwardenMockResponses struct{}

func (BitwardenMockResponses) status(state string) MockResponse {
	return MockResponse{
		Stdout: []byte(fmt.Sprintf(`{
			"serverUrl": "https://vault.bitwarden.com",
			"lastSync": "2024-01-15T10:30:00.000Z",
			"userEmail": "user@example.com",
			"userId": "user-123",
			"status": %q
		}`, state)),
	}
}

// StatusUnlocked returns bw status output for an unlocked vault.
func (b BitwardenMockResponses) StatusUnlocked() MockResponse { return b.status("unlocked") }

// StatusLocked returns bw status output for a locked vault.
func (b BitwardenMockResponses) StatusLocked() MockResponse { return b.status("locked") }

// StatusUnauthenticated returns bw status output when nobody is logged in.
func (b BitwardenMockResponses) StatusUnauthenticated() MockResponse {
	return b.status("unauthenticated")
}

// LoginItem returns a single login item as printed by bw get item.
func (BitwardenMockResponses) LoginItem(id, name, username, password string) string {
	return fmt.Sprintf(`{
		"object": "item",
		"id": %q,
		"organizationId": null,
		"folderId": null,
		"type": 1,
		"name": %q,
		"notes": "Test notes for the item",
		"favorite": false,
		"login": {
			"username": %q,
			"password": %q,
			"totp": "JBSWY3DPEHPK3PXP",
			"uris": [{"uri": "https://example.com", "match": null}]
		},
		"fields": [
			{"name": "api_key", "value": "secret-key-123", "type": 1}
		],
		"collectionIds": [],
		"revisionDate": "2024-01-15T10:30:00.000Z"
	}`, id, name, username, password)
}

// BWSMockResponses provides canned output of the bws CLI.
type BWSMockResponses struct{}

// Secret renders one secret object.
func (BWSMockResponses) Secret(id, key, value, projectID string) string {
	return fmt.Sprintf(`{
		"object": "secret",
		"id": %q,
		"organizationId": "org-1",
		"projectId": %q,
		"key": %q,
		"value": %q,
		"note": "",
		"creationDate": "2024-01-15T10:30:00.000Z",
		"revisionDate": "2024-01-15T10:30:00.000Z"
	}`, id, projectID, key, value)
}

// OnePasswordMockResponses provides canned output of the op CLI.
type OnePasswordMockResponses struct{}

// ItemGet returns op item get --format json output for a password item.
func (OnePasswordMockResponses) ItemGet(id, title, password string) MockResponse {
	return MockResponse{
		Stdout: []byte(fmt.Sprintf(`{
			"id": %q,
			"title": %q,
			"vault": {"id": "vault-1", "name": "Private"},
			"category": "PASSWORD",
			"fields": [
				{"id": "password", "type": "CONCEALED", "purpose": "PASSWORD", "label": "password", "value": %q},
				{"id": "notesPlain", "type": "STRING", "purpose": "NOTES", "label": "notesPlain"}
			]
		}`, id, title, password)),
	}
}

// ItemNotFound returns the failure op prints for a missing item.
func (OnePasswordMockResponses) ItemNotFound(title string) MockResponse {
	return ErrorResponse(fmt.Sprintf("[ERROR] 2024/01/15 10:30:00 %q isn't an item. Specify the item with its UUID, name, or domain.", title), 1)
}
