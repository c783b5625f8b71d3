package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Latin letters with diacritics common in game titles and genre names,
// folded to ASCII. Anything not listed becomes a separator.
var fold = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c", "ß", "ss", "æ", "ae", "œ", "oe",
	"&", " and ", "+", " plus ",
)

// Generate creates a URL-friendly slug from the given name.
//
//   - "Role-Playing & Adventure" -> "role-playing-and-adventure"
//   - "Pokémon Légendes" -> "pokemon-legendes"
//   - "  Hello   World! " -> "hello-world"
func Generate(name string) string {
	s := fold.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
