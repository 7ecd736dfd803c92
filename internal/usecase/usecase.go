package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

const (
	DefaultShortCodeLength = 6
	DefaultExpiry          = time.Hour
)

type urlRepository interface {
	List(ctx context.Context, filter entity.URLFilter) ([]*entity.URL, error)
	Create(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Update(ctx context.Context, id string, upd entity.URLUpdate) (*entity.URL, error)
}

type urlLocker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}

// Policy is the immutable configuration of the expiry policy.
type Policy struct {
	ShortCodeLength int
	// DefaultExpiry applies whenever the caller supplies no usable expiry.
	DefaultExpiry time.Duration
	// ResetCreatedOnRotate restarts the validity window when an expired
	// URL gets a new short code. When false the old created time is kept.
	ResetCreatedOnRotate bool
}

type URLUseCase struct {
	urlRepo   urlRepository
	urlLocker urlLocker
	policy    Policy
	now       func() time.Time
	generate  func(size int) (string, error)
}

// New returns a URLUseCase. A nil urlLocker disables per-URL locking.
func New(urlRepo urlRepository, urlLocker urlLocker, policy Policy) *URLUseCase {
	if urlLocker == nil {
		urlLocker = nopLocker{}
	}
	if policy.ShortCodeLength <= 0 {
		policy.ShortCodeLength = DefaultShortCodeLength
	}
	if policy.DefaultExpiry <= 0 {
		policy.DefaultExpiry = DefaultExpiry
	}

	return &URLUseCase{
		urlRepo:   urlRepo,
		urlLocker: urlLocker,
		policy:    policy,
		now:       time.Now,
		generate: func(size int) (string, error) {
			return gonanoid.New(size)
		},
	}
}

// clock returns the decision instant at the precision the store keeps.
func (uc *URLUseCase) clock() time.Time {
	return uc.now().UTC().Truncate(time.Millisecond)
}

func (uc *URLUseCase) effectiveExpiry(expiry *time.Duration) time.Duration {
	if expiry == nil || *expiry < 0 {
		return uc.policy.DefaultExpiry
	}
	return *expiry
}

// ShortenURL returns the short code for originalURL, creating, refreshing or
// rotating its record. expiry overrides the default time-to-live for this
// call only.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string, expiry *time.Duration) (*entity.ShortenResult, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	unlock, err := uc.urlLocker.Lock(ctx, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to lock url: %w", op, err)
	}
	defer unlock()

	now := uc.clock()
	ttl := uc.effectiveExpiry(expiry)

	urls, err := uc.urlRepo.List(ctx, entity.URLFilter{OriginalURLs: []string{originalURL}})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to look up url: %w", op, err)
	}

	res, err := uc.apply(ctx, originalURL, latestByOriginalURL(urls)[originalURL], ttl, now)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	return res, nil
}

// ShortenBatch applies the ShortenURL decision to every element of
// originalURLs in order. All decisions are taken against one snapshot read
// before the first write, so duplicates in the batch do not observe each
// other. Refreshes and rotations are both reported as entity.ActionUpdated.
func (uc *URLUseCase) ShortenBatch(ctx context.Context, originalURLs []string, expiry *time.Duration) ([]entity.BatchResult, error) {
	const op = "usecase.URLUseCase.ShortenBatch"

	results := make([]entity.BatchResult, 0, len(originalURLs))
	if len(originalURLs) == 0 {
		return results, nil
	}

	distinct := distinctURLs(originalURLs)

	unlock, err := uc.urlLocker.Lock(ctx, distinct...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to lock urls: %w", op, err)
	}
	defer unlock()

	now := uc.clock()
	ttl := uc.effectiveExpiry(expiry)

	urls, err := uc.urlRepo.List(ctx, entity.URLFilter{OriginalURLs: distinct})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to look up urls: %w", op, err)
	}

	snapshot := latestByOriginalURL(urls)

	for _, originalURL := range originalURLs {
		res, err := uc.apply(ctx, originalURL, snapshot[originalURL], ttl, now)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to shorten %q: %w", op, originalURL, err)
		}

		action := res.Action
		if action != entity.ActionCreated {
			action = entity.ActionUpdated
		}

		results = append(results, entity.BatchResult{
			OriginalURL: originalURL,
			ShortCode:   res.URL.ShortCode,
			Action:      action,
		})
	}

	return results, nil
}

func (uc *URLUseCase) apply(ctx context.Context, originalURL string, current *entity.URL, ttl time.Duration, now time.Time) (*entity.ShortenResult, error) {
	if current == nil {
		url, err := uc.withFreshShortCode(func(shortCode string) (*entity.URL, error) {
			return uc.urlRepo.Create(ctx, &entity.URL{
				ShortCode:   shortCode,
				OriginalURL: originalURL,
				CreatedAt:   now,
				Expiry:      &ttl,
			})
		})
		if err != nil {
			return nil, err
		}
		return &entity.ShortenResult{URL: url, Action: entity.ActionCreated}, nil
	}

	// The caller's ttl, not the stored one, judges the existing window.
	if !current.IsActive(now, ttl) {
		upd := entity.URLUpdate{Expiry: &ttl}
		if uc.policy.ResetCreatedOnRotate {
			upd.CreatedAt = &now
		}

		url, err := uc.withFreshShortCode(func(shortCode string) (*entity.URL, error) {
			upd.ShortCode = &shortCode
			return uc.urlRepo.Update(ctx, current.ID, upd)
		})
		if err != nil {
			return nil, err
		}
		return &entity.ShortenResult{URL: url, Action: entity.ActionRotated}, nil
	}

	url, err := uc.urlRepo.Update(ctx, current.ID, entity.URLUpdate{
		CreatedAt: &now,
		Expiry:    &ttl,
	})
	if err != nil {
		return nil, err
	}
	return &entity.ShortenResult{URL: url, Action: entity.ActionRefreshed}, nil
}

func (uc *URLUseCase) withFreshShortCode(write func(shortCode string) (*entity.URL, error)) (*entity.URL, error) {
	const op = "usecase.URLUseCase.withFreshShortCode"
	const maxRetries = 5

	for i := 0; i < maxRetries; i++ {
		shortCode, err := uc.generate(uc.policy.ShortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := write(shortCode)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, err
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// latestByOriginalURL picks one record per original URL: the one with the
// greatest CreatedAt. On equal timestamps the first record seen wins.
func latestByOriginalURL(urls []*entity.URL) map[string]*entity.URL {
	latest := make(map[string]*entity.URL, len(urls))

	for _, url := range urls {
		cur, ok := latest[url.OriginalURL]
		if !ok || url.CreatedAt.After(cur.CreatedAt) {
			latest[url.OriginalURL] = url
		}
	}

	return latest
}

func distinctURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	distinct := make([]string, 0, len(urls))

	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		distinct = append(distinct, url)
	}

	return distinct
}
