package ldap

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// deleteTreePageSize keeps subtree listings under the server size limit.
const deleteTreePageSize = 500

// DeleteTree removes dn and everything below it, deepest entries first.
// It stops at the first failed delete.
func DeleteTree(ctx context.Context, client Client, dn string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	result, err := client.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeWholeSubtree,
		Filter:     "(objectClass=*)",
		Attributes: []string{"1.1"},
		PagingSize: deleteTreePageSize,
	})
	if err != nil {
		return err
	}

	type node struct {
		dn    string
		depth int
	}

	nodes := make([]node, 0, len(result.Entries)+1)
	seenRoot := false
	for _, entry := range result.Entries {
		parsed, err := ldap.ParseDN(entry.DN)
		if err != nil {
			return WrapError("delete_tree", fmt.Errorf("invalid DN %q in subtree: %w", entry.DN, err))
		}
		nodes = append(nodes, node{dn: entry.DN, depth: len(parsed.RDNs)})
		if entry.DN == dn {
			seenRoot = true
		}
	}
	if !seenRoot {
		parsed, err := ldap.ParseDN(dn)
		if err != nil {
			return WrapError("delete_tree", fmt.Errorf("invalid DN %q: %w", dn, err))
		}
		nodes = append(nodes, node{dn: dn, depth: len(parsed.RDNs)})
	}

	slices.SortStableFunc(nodes, func(a, b node) int { return cmp.Compare(b.depth, a.depth) })

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Deleting subtree", map[string]any{
		"dn":      dn,
		"entries": len(nodes),
	})

	for _, n := range nodes {
		if err := client.Delete(ctx, n.dn); err != nil {
			return err
		}
	}

	return nil
}
