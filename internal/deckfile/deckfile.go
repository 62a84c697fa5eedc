// Package deckfile reads YAML deck files:
//
//	deck: Spanish
//	cards:
//	  - front: hola
//	    back: hello
//	  - front: "2 + 2"
//	    back: "4"
//	    deck: Math
package deckfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/romanzh1/mnemosyne/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrEmptyDeck = errors.New("deck file has no cards")

type Deck struct {
	Deck  string                   `yaml:"deck"`
	Cards []models.CreateCardInput `yaml:"cards"`
}

// CardCreator is the part of models.Service used by Import.
type CardCreator interface {
	CreateCard(ctx context.Context, in models.CreateCardInput) (*models.Card, error)
}

// Parse decodes a deck file. Unknown keys are rejected.
func Parse(r io.Reader) (*Deck, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var deck Deck
	if err := dec.Decode(&deck); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDeck
		}
		return nil, fmt.Errorf("decode deck file: %w", err)
	}
	if len(deck.Cards) == 0 {
		return nil, ErrEmptyDeck
	}

	return &deck, nil
}

// Import creates every card of the deck in file order. A card without its own
// deck goes to the file deck. Import stops at the first failing card and
// returns how many were created before it.
func Import(ctx context.Context, creator CardCreator, deck *Deck) (int, error) {
	imported := 0
	for i, in := range deck.Cards {
		if in.DeckName == "" {
			in.DeckName = deck.Deck
		}

		if _, err := creator.CreateCard(ctx, in); err != nil {
			return imported, fmt.Errorf("import card %d (front: %q): %w", i+1, in.Front, err)
		}
		imported++
	}

	zap.L().Info("deck imported", zap.String("deck_name", deck.Deck), zap.Int("cards", imported))
	return imported, nil
}
