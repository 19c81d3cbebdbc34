// Package version holds build-time version info injected via ldflags:
//
//	go build -ldflags "-X github.com/msuslov84/Chat/pkg/version.tag=v1.0.0
//	  -X github.com/msuslov84/Chat/pkg/version.commit=abc1234"
package version

var (
	tag    = ""        // git tag, empty if not on a tag
	commit = "unknown" // short git commit SHA
	date   = "unknown" // build date
)

// String returns the tag, else the commit, else "dev".
func String() string {
	switch {
	case tag != "":
		return tag
	case commit != "unknown":
		return commit
	default:
		return "dev"
	}
}

// Full adds commit and build date to String when they are known.
func Full() string {
	if commit == "unknown" {
		return String()
	}
	if tag != "" {
		return tag + " (" + commit + ") built " + date
	}
	return commit + " built " + date
}
