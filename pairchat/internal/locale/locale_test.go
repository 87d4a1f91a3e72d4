package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNewMatchesLanguage(t *testing.T) {
	assert.Equal(t, language.English, New("en-US").Language())
	assert.Equal(t, language.Japanese, New("").Language())
	assert.Equal(t, language.Japanese, New("not a tag!").Language())
}

func TestTextFormatsArguments(t *testing.T) {
	p := New("en")
	assert.Equal(t, "5 more messages are needed. Please keep chatting.", p.Text(AlertTooShort, 5))
	assert.Equal(t, "規定の長さまであと3発話です。チャットをまだ続けてください。", New("ja").Text(AlertTooShort, 3))
}

func TestEveryKeyTranslated(t *testing.T) {
	ja := entries[language.Japanese]
	for k := range ja {
		_, ok := entries[language.English][k]
		assert.True(t, ok, "missing english text for %s", k)
	}
	assert.Len(t, entries[language.English], len(ja))
}
