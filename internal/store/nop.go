package store

import (
	"context"

	"github.com/amishk599/freshpost/internal/model"
)

// NopStore is used in check mode. It never has a document and discards saves,
// so every fresh posting appears new on each run.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Load(context.Context, string) ([]byte, error) { return nil, model.ErrNotFound }
func (s *NopStore) Save(context.Context, string, []byte) error   { return nil }
