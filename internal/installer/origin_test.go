package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Origin
	}{
		{
			name: "github plain",
			in:   "https://github.com/example/my-mcp",
			want: Origin{Type: OriginGitHub, Name: "my-mcp", FullName: "example/my-mcp",
				CloneURL: "https://github.com/example/my-mcp.git", Branch: "main"},
		},
		{
			name: "github with branch and path",
			in:   "https://github.com/example/my-mcp/tree/develop/packages/server",
			want: Origin{Type: OriginGitHub, Name: "my-mcp", FullName: "example/my-mcp",
				CloneURL: "https://github.com/example/my-mcp.git", Branch: "develop", Subpath: "packages/server"},
		},
		{
			name: "gitlab with branch",
			in:   "https://gitlab.com/group/proj/-/tree/main",
			want: Origin{Type: OriginGitLab, Name: "proj", FullName: "group/proj",
				CloneURL: "https://gitlab.com/group/proj.git", Branch: "main"},
		},
		{
			name: "bitbucket",
			in:   "https://bitbucket.org/team/repo/src/stable",
			want: Origin{Type: OriginBitbucket, Name: "repo", FullName: "team/repo",
				CloneURL: "https://bitbucket.org/team/repo.git", Branch: "stable"},
		},
		{
			name: "generic git",
			in:   "git+https://example.org/tools/server.git",
			want: Origin{Type: OriginGit, Name: "server", FullName: "server",
				CloneURL: "https://example.org/tools/server.git", Branch: "main"},
		},
		{
			name: "npm scoped with version",
			in:   "npm:@scope/server@1.2.3",
			want: Origin{Type: OriginNPM, Name: "server", FullName: "@scope/server",
				Package: "@scope/server", Version: "1.2.3"},
		},
		{
			name: "npm bare fallback",
			in:   "everything-server",
			want: Origin{Type: OriginNPM, Name: "everything-server", FullName: "everything-server",
				Package: "everything-server", Version: "latest"},
		},
		{
			name: "npm bare fallback mixed case",
			in:   "SomePackage",
			want: Origin{Type: OriginNPM, Name: "SomePackage", FullName: "SomePackage",
				Package: "SomePackage", Version: "latest"},
		},
		{
			name: "pip prefixed",
			in:   "pip:mcp-weather",
			want: Origin{Type: OriginPip, Name: "mcp-weather", FullName: "mcp-weather",
				Package: "mcp-weather", Version: "latest"},
		},
		{
			name: "pypi pinned",
			in:   "pypi:mcp-weather==0.4.0",
			want: Origin{Type: OriginPip, Name: "mcp-weather", FullName: "mcp-weather",
				Package: "mcp-weather", Version: "0.4.0"},
		},
		{
			name: "bare pinned pip",
			in:   "mcp-weather==0.4.0",
			want: Origin{Type: OriginPip, Name: "mcp-weather", FullName: "mcp-weather",
				Package: "mcp-weather", Version: "0.4.0"},
		},
		{
			name: "tarball",
			in:   "https://example.com/releases/server-1.0.tar.gz",
			want: Origin{Type: OriginTarball, Name: "server-1-0", FullName: "server-1.0",
				URL: "https://example.com/releases/server-1.0.tar.gz"},
		},
		{
			name: "local file",
			in:   "file:///opt/servers/echo",
			want: Origin{Type: OriginLocal, Name: "echo", FullName: "echo", Path: "/opt/servers/echo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrigin(tt.in)
			require.NoError(t, err)
			tt.want.Raw = tt.in
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOriginRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "file://relative/path"} {
		_, err := ParseOrigin(in)
		assert.Error(t, err, in)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my-server", sanitizeName("my.server"))
	assert.Equal(t, "weird-name", sanitizeName("--weird@@name--"))
	assert.Equal(t, "server", sanitizeName("@@@"))
}
