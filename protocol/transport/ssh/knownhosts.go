package ssh

import (
	"fmt"

	"github.com/skeema/knownhosts"
)

// newKnownHostsDB opens the known_hosts database SSH_KNOWN_HOSTS points at,
// falling back to ~/.ssh/known_hosts and /etc/ssh/ssh_known_hosts. At least
// one of the candidate files must actually exist.
func newKnownHostsDB(files ...string) (*knownhosts.HostKeyDB, error) {
	var err error
	if len(files) == 0 {
		if files, err = defaultKnownHostsFiles(); err != nil {
			return nil, err
		}
	}

	files = existingFiles(files...)
	if len(files) == 0 {
		return nil, fmt.Errorf("ssh: no known_hosts file found, set SSH_KNOWN_HOSTS")
	}

	return knownhosts.NewDB(files...)
}
