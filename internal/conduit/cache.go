package conduit

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

type userLookup interface {
	MakeUsernamePhidDict(ctx context.Context, usernames []string) (map[string]string, error)
}

// UserPhidCache resolves usernames to phids, batching the names hinted
// before the first lookup into one call.
type UserPhidCache struct {
	users userLookup

	mu      sync.Mutex
	hints   []string
	phids   map[string]string
	missing map[string]struct{}
}

func NewUserPhidCache(users userLookup) *UserPhidCache {
	return &UserPhidCache{
		users:   users,
		phids:   make(map[string]string),
		missing: make(map[string]struct{}),
	}
}

// AddHintList queues usernames for the next lookup.
func (c *UserPhidCache) AddHintList(usernames []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range usernames {
		if c.known(u) {
			continue
		}
		c.hints = append(c.hints, u)
	}
}

// GetPhid returns the phid of username, ok is false for unknown users.
func (c *UserPhidCache) GetPhid(ctx context.Context, username string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.known(username) {
		if err := c.resolve(ctx, lo.Uniq(append(c.hints, username))); err != nil {
			return "", false, err
		}
		c.hints = nil
	}

	phid, ok := c.phids[username]

	return phid, ok, nil
}

// GetPhids resolves usernames, leaving out the unknown ones.
func (c *UserPhidCache) GetPhids(ctx context.Context, usernames []string) ([]string, error) {
	c.AddHintList(usernames)

	phids := make([]string, 0, len(usernames))
	for _, u := range usernames {
		phid, ok, err := c.GetPhid(ctx, u)
		if err != nil {
			return nil, err
		}
		if ok {
			phids = append(phids, phid)
		}
	}

	return phids, nil
}

func (c *UserPhidCache) known(username string) bool {
	if _, ok := c.phids[username]; ok {
		return true
	}
	_, ok := c.missing[username]
	return ok
}

// resolve looks usernames up in one call, falling back to one call per
// name when the batch contains an unknown user.
func (c *UserPhidCache) resolve(ctx context.Context, usernames []string) error {
	usernames = lo.Filter(usernames, func(u string, _ int) bool { return !c.known(u) })
	if len(usernames) == 0 {
		return nil
	}

	dict, err := c.users.MakeUsernamePhidDict(ctx, usernames)
	if err != nil {
		return err
	}

	if dict != nil {
		for _, u := range usernames {
			if phid, ok := dict[u]; ok {
				c.phids[u] = phid
			} else {
				c.missing[u] = struct{}{}
			}
		}
		return nil
	}

	if len(usernames) == 1 {
		c.missing[usernames[0]] = struct{}{}
		return nil
	}

	for _, u := range usernames {
		if err := c.resolve(ctx, []string{u}); err != nil {
			return err
		}
	}

	return nil
}
