package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestTag(t *testing.T) {
	t.Parallel()
	assert.Equal(t, language.Russian, Tag("ru"))
	assert.Equal(t, language.Russian, Tag("ru-RU"))
	assert.Equal(t, language.English, Tag("en-GB"))
	assert.Equal(t, language.English, Tag("tlh"))
	assert.Equal(t, language.English, Tag(""))
}

func TestPrinterFormats(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Correct, Ann! +1 point.", Printer("en").Sprintf(Correct, "Ann"))
	assert.Equal(t, "Верно, Аня! +1 очко.", Printer("ru").Sprintf(Correct, "Аня"))
	assert.Equal(t, "Tour 2 of 3: Space", Printer("de").Sprintf(TourStart, 2, 3, "Space"))
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	t.Parallel()
	for key := range english {
		_, ok := russian[key]
		assert.True(t, ok, "russian catalog misses %q", key)
	}
	assert.Len(t, russian, len(english))
}
