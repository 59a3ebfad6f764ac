package bitwarden

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func (p *Provider) getItemValue(ctx context.Context, key, field string, o overrides) (string, bool, error) {
	if err := p.checkAuth(ctx); err != nil {
		return "", false, err
	}

	items, err := p.listItems(ctx, o, "--search", key)
	if err != nil {
		return "", false, err
	}

	// The first search result wins. bw search also matches usernames, notes
	// and URIs, so with several candidates the result follows bw's order.
	if len(items) == 0 {
		p.logger.Debug("no item matches %q", key)
		return "", false, nil
	}
	item := &items[0]

	value, ok := ResolveField(item, key, field)
	p.logger.Debug("item %s (%s) for %q: field=%q found=%t", item.ID, item.Type, key, field, ok)
	return value, ok, nil
}

func (p *Provider) setItemValue(ctx context.Context, project, key, value, profile, field string, o overrides) error {
	if err := p.checkAuth(ctx); err != nil {
		return err
	}

	items, err := p.listItems(ctx, o)
	if err != nil {
		return err
	}

	item := exactItem(items, p.compoundName(project, profile, key), key)
	if item == nil {
		item = containingItem(items, key)
	}
	if item != nil {
		return p.updateItem(ctx, item.ID, key, value, field, o)
	}
	return p.createItem(ctx, key, value, field, o)
}

// compoundName is the name earlier releases gave items, e.g.
// "secretspec/myapp/dev/API_KEY".
func (p *Provider) compoundName(project, profile, key string) string {
	return p.config.folderPrefix(project, profile) + "/" + key
}

func (p *Provider) listItems(ctx context.Context, o overrides, extra ...string) ([]Item, error) {
	args := append([]string{"list", "items"}, extra...)
	out, err := p.runBW(ctx, nil, withOrganization(args, p.organization(o))...)
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden items: %w", err)
	}
	return items, nil
}

// updateItem edits the stored item in place. The item is re-read with bw get
// so that properties absent from list output are preserved.
func (p *Provider) updateItem(ctx context.Context, id, key, value, field string, o overrides) error {
	org := p.organization(o)

	out, err := p.runBW(ctx, nil, withOrganization([]string{"get", "item", id}, org)...)
	if err != nil {
		return err
	}
	doc, err := decodeDocument(out)
	if err != nil {
		return err
	}
	t, err := doc.itemType()
	if err != nil {
		return err
	}

	target := field
	if target == "" {
		target = WriteTarget(t, key)
	}
	p.logger.Debug("updating %s field %q of item %s", t, target, id)

	if err := doc.setField(t, target, value); err != nil {
		return err
	}
	payload, err := p.prepare(doc)
	if err != nil {
		return err
	}

	_, err = p.runBW(ctx, payload, withOrganization([]string{"edit", "item", id}, org)...)
	return err
}

func (p *Provider) createItem(ctx context.Context, key, value, field string, o overrides) error {
	t := p.itemType(o)
	org := p.organization(o)

	target := field
	if target == "" {
		target = WriteTarget(t, key)
	}
	p.logger.Debug("creating %s item %q with field %q", t, key, target)

	doc := newDocument(t, key, "SecretSpec managed secret: "+key)
	if err := doc.setField(t, target, value); err != nil {
		return err
	}
	doc.setOwnership(org, p.collection(o))

	payload, err := p.prepare(doc)
	if err != nil {
		return err
	}

	_, err = p.runBW(ctx, payload, withOrganization([]string{"create", "item"}, org)...)
	return err
}

// prepare validates doc and encodes it for bw create and bw edit.
func (p *Provider) prepare(doc document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc.encode()
}

func withOrganization(args []string, org string) []string {
	if org == "" {
		return args
	}
	return append(args, "--organizationid", org)
}

// exactItem returns the item named compound, else the item named key.
func exactItem(items []Item, compound, key string) *Item {
	for _, name := range []string{compound, key} {
		for i := range items {
			if items[i].Name == name {
				return &items[i]
			}
		}
	}
	return nil
}

// containingItem returns the first item whose name contains key,
// case-insensitively. With several candidates the result depends on the
// order bw lists them in.
func containingItem(items []Item, key string) *Item {
	lower := strings.ToLower(key)
	for i := range items {
		if strings.Contains(strings.ToLower(items[i].Name), lower) {
			return &items[i]
		}
	}
	return nil
}
