// Package protect flags artifacts in sensitive areas of a project, so that
// changes to them are treated as high risk.
package protect

// DefaultPatterns are doublestar globs of protected directories.
var DefaultPatterns = []string{
	"**/auth/**",
	"**/security/**",
	"**/migrations/**",
	"**/infra/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/certs/**",
	"**/.ssh/**",
	"**/terraform/**",
	"**/helm/**",
	"**/k8s/**",
}

// DefaultKeywords are case-insensitive path substrings of protected artifacts.
var DefaultKeywords = []string{
	"auth",
	"login",
	"password",
	"token",
	"secret",
	"migration",
	"credential",
	"private",
	"encrypt",
	"decrypt",
	"oauth",
	"jwt",
	"permission",
	"rbac",
}

// DefaultFileTypes are protected file extensions.
var DefaultFileTypes = []string{
	".sql",
	".tf",
	".pem",
	".key",
	".env",
	".p12",
	".pfx",
	".jks",
	".crt",
}

// ImportPattern marks content that imports security-sensitive code.
type ImportPattern struct {
	Pattern string
	Reason  string
}

// SecurityImports are matched against artifact content.
var SecurityImports = []ImportPattern{
	{Pattern: `"crypto/`, Reason: "cryptography"},
	{Pattern: `"golang\.org/x/crypto/`, Reason: "cryptography"},
	{Pattern: `"golang\.org/x/oauth2`, Reason: "OAuth2 authentication"},
	{Pattern: `['"](jsonwebtoken|bcrypt|passport)['"]`, Reason: "authentication"},
	{Pattern: `^\s*(import|from)\s+(cryptography|jwt|bcrypt|passlib)\b`, Reason: "authentication"},
	{Pattern: `use\s+(ring|argon2|jsonwebtoken)::`, Reason: "cryptography"},
}
