package pad

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/entrhq/margin/pkg/commands"
)

// syntaxNames maps chroma lexer names onto the syntax names used in
// syntax_extension_map.
var syntaxNames = map[string]string{
	"markdown":     "Markdown",
	"Bash":         "Shell",
	"Bash Session": "Shell",
	"plaintext":    "",
}

// DetectSyntax returns the syntax identifier for a buffer. The file name
// decides when it matches a lexer; otherwise the content is analysed.
// Anything unrecognised is plain text.
func DetectSyntax(fileName, text string) string {
	var lexer chroma.Lexer
	if fileName != "" {
		lexer = lexers.Match(filepath.Base(fileName))
	}
	if lexer == nil && strings.TrimSpace(text) != "" {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		return commands.PlainTextSyntaxPath
	}
	return SyntaxPath(lexer.Config().Name)
}

// SyntaxPath builds the identifier for a chroma lexer name, of the form
// Packages/<Name>/<Name>.sublime-syntax.
func SyntaxPath(lexerName string) string {
	name := lexerName
	if mapped, ok := syntaxNames[lexerName]; ok {
		name = mapped
	}
	if name == "" {
		return commands.PlainTextSyntaxPath
	}
	return "Packages/" + name + "/" + name + ".sublime-syntax"
}
