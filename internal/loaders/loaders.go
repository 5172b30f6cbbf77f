// Package loaders batches per-request lookups so a comment thread resolves its authors
// with one query.
package loaders

import (
	"context"
	"strconv"
	"time"

	"github.com/anonto42/quill/backend/internal/models"
	"github.com/graph-gophers/dataloader"
	"github.com/labstack/echo/v4"
)

type contextKey string

const key = contextKey("loaders")

// UserSource is the batch lookup the author loader calls.
type UserSource interface {
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
}

// Loaders holds every loader of a request.
type Loaders struct {
	UserByID *dataloader.Loader
}

func New(users UserSource) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		ids := make([]uint, 0, len(keys))
		for _, k := range keys {
			if id, err := strconv.ParseUint(k.String(), 10, 64); err == nil {
				ids = append(ids, uint(id))
			}
		}

		found, err := users.GetUsersByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byID := make(map[string]models.UserCompact, len(found))
		for i := range found {
			byID[strconv.FormatUint(uint64(found[i].ID), 10)] = found[i].ToCompact()
		}
		// results must line up with keys; unknown users resolve to nil
		for i, k := range keys {
			if u, ok := byID[k.String()]; ok {
				u := u
				results[i] = &dataloader.Result{Data: &u}
			} else {
				results[i] = &dataloader.Result{Data: (*models.UserCompact)(nil)}
			}
		}
		return results
	}

	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware attaches fresh loaders to every request context.
func Middleware(users UserSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), key, New(users))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// For extracts the loaders from the context, building uncached ones when the
// middleware did not run.
func For(ctx context.Context, users UserSource) *Loaders {
	if l, ok := ctx.Value(key).(*Loaders); ok {
		return l
	}
	return New(users)
}

// Users resolves many user ids at once. Missing users map to nil.
func (l *Loaders) Users(ctx context.Context, ids []uint) (map[uint]*models.UserCompact, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatUint(uint64(id), 10)
	}
	data, errs := l.UserByID.LoadMany(ctx, dataloader.NewKeysFromStrings(keys))()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make(map[uint]*models.UserCompact, len(ids))
	for i, d := range data {
		if u, ok := d.(*models.UserCompact); ok && u != nil {
			out[ids[i]] = u
		}
	}
	return out, nil
}
