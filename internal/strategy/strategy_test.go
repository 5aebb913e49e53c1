package strategy

import (
	"testing"

	"hawx.me/code/assert"
	"hawx.me/code/dashboard/internal/config"
)

type fakeAuthorizer struct{}

func (fakeAuthorizer) AuthorizeURL(provider, redirectTo, verifier string) string {
	return "https://auth.example.com/authorize?provider=" + provider + "&redirect_to=" + redirectTo + "&v=" + verifier
}

func TestFromConfig(t *testing.T) {
	assert := assert.New(t)

	strategies := FromConfig(fakeAuthorizer{}, []config.Provider{
		{Name: "github", Label: "GitHub"},
		{Name: "google"},
	})

	assert.Len(strategies, 2)
	assert.Equal("GitHub", strategies[0].Label())
	assert.Equal("google", strategies[1].Label())

	found, err := strategies.Find("google")
	assert.Nil(err)
	assert.Equal("google", found.Name())
	assert.Equal("https://auth.example.com/authorize?provider=google&redirect_to=/cb&v=abc", found.Redirect("/cb", "abc"))

	_, err = strategies.Find("myspace")
	assert.Equal(ErrUnknown, err)
}
