// Package buildinfo holds the kestrel build stamp. Release builds set it
// with -ldflags "-X kestrel/internal/buildinfo.Version=v0.3.0 -X ...".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the identifier logged when the kernel starts: the version,
// with the commit appended when both are stamped, or the bare commit for
// untagged builds.
func Short() string {
	version := Version != "" && Version != "dev"
	commit := Commit != "" && Commit != "unknown"
	switch {
	case version && commit:
		return Version + "+" + shortCommit(Commit)
	case version:
		return Version
	case commit:
		return shortCommit(Commit)
	}
	return "dev"
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
