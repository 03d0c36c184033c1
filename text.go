package main

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/swhite/businesscard/internal/card"
)

// Resource keys for the card's static text.
const (
	NameKey           = "card.name"
	JobTitleKey       = "card.job_title"
	HandleKey         = "card.github_handle"
	ProfileAltKey     = "card.profile_picture_description"
	PortfolioTitleKey = "card.portfolio_title"
)

// ErrResourceNotFound is returned for a key with no registered text.
var ErrResourceNotFound = errors.New("resource not found")

var cardText = map[string]string{
	NameKey:           "Sam White",
	JobTitleKey:       "Android Developer",
	HandleKey:         "@swhite",
	ProfileAltKey:     "Profile picture",
	PortfolioTitleKey: "Portfolio",
}

// cardCatalog holds the card text per language. Tags with no messages of
// their own resolve nothing.
var cardCatalog = newCardCatalog()

func newCardCatalog() *catalog.Builder {
	b := catalog.NewBuilder()
	for key, text := range cardText {
		if err := b.SetString(language.English, key, text); err != nil {
			panic(fmt.Sprintf("register %s: %v", key, err))
		}
	}
	return b
}

// Resources looks up the card's static text by key.
type Resources struct {
	printer *message.Printer
}

func newResources(tag language.Tag) *Resources {
	return &Resources{printer: message.NewPrinter(tag, message.Catalog(cardCatalog))}
}

// Lookup returns the text for key in the printer's language. The printer
// echoes keys it has no message for, so an echo means not found.
func (r *Resources) Lookup(key string) (string, error) {
	text := r.printer.Sprintf(key)
	if text == key {
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, key)
	}
	return text, nil
}

// Profile is the static text block shown under the profile image.
type Profile struct {
	Name     string
	JobTitle string
	Handle   string
	ImageAlt string
	Image    string
	Heading  string
}

func (r *Resources) profile() (Profile, error) {
	var p Profile
	fields := []struct {
		key string
		dst *string
	}{
		{NameKey, &p.Name},
		{JobTitleKey, &p.JobTitle},
		{HandleKey, &p.Handle},
		{ProfileAltKey, &p.ImageAlt},
		{PortfolioTitleKey, &p.Heading},
	}
	for _, f := range fields {
		text, err := r.Lookup(f.key)
		if err != nil {
			return Profile{}, err
		}
		*f.dst = text
	}
	p.Image = card.DefaultImageRef
	return p, nil
}
