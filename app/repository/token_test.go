package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTokenRepository(t *testing.T) (*repository.TokenRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return repository.NewTokenRepository(rdb, "test", 10*time.Minute), mr
}

func TestTokenRepository_CreateAndFind(t *testing.T) {
	repo, mr := newTokenRepository(t)
	ctx := context.Background()

	token := &entity.Token{Token: "123456", UserID: 5, Purpose: entity.TokenPurposeConfirmation}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token.CreatedAt.IsZero() || token.ExpiresAt.Sub(token.CreatedAt) != 10*time.Minute {
		t.Fatalf("unexpected timestamps: %v %v", token.CreatedAt, token.ExpiresAt)
	}
	if ttl := mr.TTL("test:token:123456"); ttl != 10*time.Minute {
		t.Fatalf("expected 10m ttl on token key, got %v", ttl)
	}

	found, err := repo.FindByToken(ctx, "123456")
	if err != nil {
		t.Fatalf("find by token failed: %v", err)
	}
	if found == nil || found.UserID != 5 || found.Purpose != entity.TokenPurposeConfirmation {
		t.Fatalf("unexpected token: %+v", found)
	}

	byUser, err := repo.FindByUser(ctx, 5, entity.TokenPurposeConfirmation)
	if err != nil {
		t.Fatalf("find by user failed: %v", err)
	}
	if byUser == nil || byUser.Token != "123456" {
		t.Fatalf("unexpected token by user: %+v", byUser)
	}

	other, err := repo.FindByUser(ctx, 5, entity.TokenPurposeReset)
	if err != nil || other != nil {
		t.Fatalf("expected no reset token, got %+v %v", other, err)
	}
}

func TestTokenRepository_CreateRejectsSecondActiveToken(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &entity.Token{Token: "111111", UserID: 1, Purpose: entity.TokenPurposeReset}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := repo.Create(ctx, &entity.Token{Token: "222222", UserID: 1, Purpose: entity.TokenPurposeReset})
	if !errors.Is(err, repository.ErrActiveTokenExists) {
		t.Fatalf("expected ErrActiveTokenExists, got %v", err)
	}

	if found, _ := repo.FindByToken(ctx, "222222"); found != nil {
		t.Fatalf("second token must not be stored")
	}

	if err = repo.Create(ctx, &entity.Token{Token: "333333", UserID: 1, Purpose: entity.TokenPurposeConfirmation}); err != nil {
		t.Fatalf("token for another purpose should be allowed: %v", err)
	}
}

func TestTokenRepository_CreateCollisionReleasesUserIndex(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &entity.Token{Token: "444444", UserID: 1, Purpose: entity.TokenPurposeReset}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := repo.Create(ctx, &entity.Token{Token: "444444", UserID: 2, Purpose: entity.TokenPurposeReset})
	if !errors.Is(err, repository.ErrTokenCollision) {
		t.Fatalf("expected ErrTokenCollision, got %v", err)
	}

	if err = repo.Create(ctx, &entity.Token{Token: "555555", UserID: 2, Purpose: entity.TokenPurposeReset}); err != nil {
		t.Fatalf("user index should have been released after collision: %v", err)
	}
}

func TestTokenRepository_Expiry(t *testing.T) {
	repo, mr := newTokenRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &entity.Token{Token: "654321", UserID: 9, Purpose: entity.TokenPurposeConfirmation}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mr.FastForward(9*time.Minute + 59*time.Second)
	if found, _ := repo.FindByToken(ctx, "654321"); found == nil {
		t.Fatalf("token should still exist before 10 minutes")
	}

	mr.FastForward(time.Second)
	if found, _ := repo.FindByToken(ctx, "654321"); found != nil {
		t.Fatalf("token should be gone after 10 minutes")
	}
	if found, _ := repo.FindByUser(ctx, 9, entity.TokenPurposeConfirmation); found != nil {
		t.Fatalf("user index should be gone after 10 minutes")
	}
	if claimed, _ := repo.Claim(ctx, "654321", entity.TokenPurposeConfirmation); claimed != nil {
		t.Fatalf("expired token must not be claimable")
	}

	if err := repo.Create(ctx, &entity.Token{Token: "777777", UserID: 9, Purpose: entity.TokenPurposeConfirmation}); err != nil {
		t.Fatalf("new token should be allowed after expiry: %v", err)
	}
}

func TestTokenRepository_ClaimIsSingleUse(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &entity.Token{Token: "999999", UserID: 4, Purpose: entity.TokenPurposeReset}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	claimed, err := repo.Claim(ctx, "999999", entity.TokenPurposeReset)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed == nil || claimed.UserID != 4 {
		t.Fatalf("unexpected claimed token: %+v", claimed)
	}

	again, err := repo.Claim(ctx, "999999", entity.TokenPurposeReset)
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if again != nil {
		t.Fatalf("token claimed twice")
	}

	if found, _ := repo.FindByUser(ctx, 4, entity.TokenPurposeReset); found != nil {
		t.Fatalf("user index should be removed on claim")
	}
}

func TestTokenRepository_ClaimWrongPurposeKeepsToken(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &entity.Token{Token: "121212", UserID: 4, Purpose: entity.TokenPurposeConfirmation}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	claimed, err := repo.Claim(ctx, "121212", entity.TokenPurposeReset)
	if err != nil || claimed != nil {
		t.Fatalf("expected no claim for wrong purpose, got %+v %v", claimed, err)
	}

	if found, _ := repo.FindByToken(ctx, "121212"); found == nil {
		t.Fatalf("token must survive a claim for another purpose")
	}
}

func TestTokenRepository_ConcurrentClaimSucceedsOnce(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &entity.Token{Token: "343434", UserID: 8, Purpose: entity.TokenPurposeConfirmation}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.Claim(ctx, "343434", entity.TokenPurposeConfirmation)
			if err != nil {
				t.Errorf("claim errored: %v", err)
				return
			}
			if claimed != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", winners)
	}
}

func TestTokenRepository_Delete(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	token := &entity.Token{Token: "565656", UserID: 2, Purpose: entity.TokenPurposeConfirmation}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Delete(ctx, token); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if found, _ := repo.FindByToken(ctx, "565656"); found != nil {
		t.Fatalf("token should be deleted")
	}
	if err := repo.Create(ctx, &entity.Token{Token: "676767", UserID: 2, Purpose: entity.TokenPurposeConfirmation}); err != nil {
		t.Fatalf("user index should be deleted too: %v", err)
	}
}
