package engine

import (
	"path/filepath"
	"regexp"
	"strings"
)

// passwordDefine matches the PHP define line carrying the database
// password, in either quote style.
var passwordDefine = regexp.MustCompile(`(?i)(define\(\s*['"]DB_PASSWORD['"]\s*,\s*)(['"]).*?['"](\s*\))`)

// SanitizeConfig blanks credential values in a captured config file so a
// container never carries a live database password. Files without known
// credential fields pass through unchanged.
func SanitizeConfig(name string, data []byte) []byte {
	if !strings.EqualFold(filepath.Base(name), "wp-config.php") {
		return data
	}
	return passwordDefine.ReplaceAll(data, []byte(`${1}${2}${2}${3}`))
}
