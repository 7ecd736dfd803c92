package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

const recentLimit = 5

// ActiveStats counts the URLs that are active right now, grouped by the UTC
// date they were created. A URL without a readable stored expiry is judged
// with the default one.
func (uc *URLUseCase) ActiveStats(ctx context.Context) (*entity.ActiveStats, error) {
	const op = "usecase.URLUseCase.ActiveStats"

	now := uc.clock()

	urls, err := uc.urlRepo.List(ctx, entity.URLFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	stats := &entity.ActiveStats{
		Groups:  []entity.DateCount{},
		Records: []*entity.URL{},
	}
	counts := make(map[string]int)

	for _, url := range urls {
		if !url.IsActive(now, url.ExpiryOr(uc.policy.DefaultExpiry)) {
			continue
		}

		stats.Records = append(stats.Records, url)
		counts[url.CreatedAt.UTC().Format(time.DateOnly)]++
	}

	for date, count := range counts {
		stats.Groups = append(stats.Groups, entity.DateCount{Date: date, Count: count})
	}
	slices.SortFunc(stats.Groups, func(a, b entity.DateCount) int {
		return strings.Compare(a.Date, b.Date)
	})

	stats.Total = len(stats.Records)

	return stats, nil
}

// RecentURLs returns the most recently created URLs, newest first.
func (uc *URLUseCase) RecentURLs(ctx context.Context) ([]*entity.URL, error) {
	const op = "usecase.URLUseCase.RecentURLs"

	urls, err := uc.urlRepo.List(ctx, entity.URLFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	slices.SortStableFunc(urls, func(a, b *entity.URL) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if len(urls) > recentLimit {
		urls = urls[:recentLimit]
	}

	return urls, nil
}
