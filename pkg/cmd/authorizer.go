package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/archonhq/archon/pkg/auth"
)

// NewAuthorizer builds a group authorizer from a JSON membership file mapping
// email to extra group names, layered over the groups each request carries.
// An empty path relies on request-carried groups alone.
func NewAuthorizer(groupsFile string) (*auth.GroupAuthorizer, error) {
	memberships := map[string][]string{}

	if groupsFile != "" {
		data, err := os.ReadFile(groupsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read groups file %s: %w", groupsFile, err)
		}

		if err := json.Unmarshal(data, &memberships); err != nil {
			return nil, fmt.Errorf("failed to parse groups file %s: %w", groupsFile, err)
		}
	}

	return auth.NewGroupAuthorizer(memberships), nil
}
