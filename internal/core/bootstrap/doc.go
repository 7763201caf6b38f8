// Package bootstrap builds the first-boot script for the GitLab instance.
//
// This package contains the functional core logic for assembling user data.
// All functions are pure (no I/O, no side effects).
//
// # Safety
//
// Configuration values never reach the script unescaped. The template only
// sees them through typed quoting functions:
//
//   - ruby: a double-quoted Ruby string literal for /etc/gitlab/gitlab.rb,
//     with backslash, quote and interpolation (#) escaped
//   - sh: a single-quoted shell word
//
// The gitlab.rb heredoc delimiter is quoted, so the shell performs no
// expansion inside it, and values with control characters are rejected
// before the template runs, so no value can end a heredoc early.
//
// The generated root password is never part of the script. The script
// carries a reference to the secret (its ARN, resolved by the provisioning
// engine) and fetches the value at boot time.
//
// # Usage
//
//	script, err := bootstrap.Script(bootstrap.Params{
//	    Settings: settings,
//	    Region:   env.Region,
//	    Secret:   domain.RefTo("GitLabRootPassword"),
//	})
package bootstrap
