package repository

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns free text into a LIKE pattern matching it anywhere.
// Wildcards in the input are escaped with a backslash, so queries must say
// ESCAPE '\'.
func ContainsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}
