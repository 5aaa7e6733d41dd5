package actions

import (
	"context"
	"fmt"
	"time"

	"podscrub/internal/services"
	"podscrub/internal/store"
)

func (r *Registry) createPost(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	guid, err := requireString(data, "create post", "guid")
	if err != nil {
		return nil, err
	}
	existing, err := tx.PostByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, services.Wrap(services.ErrValidation, "actions", "create post",
			fmt.Sprintf("post %q already exists", guid), nil)
	}

	now := time.Now().UTC()
	post := &store.Post{GUID: guid, CreatedAt: now, UpdatedAt: now}
	applyPostFields(post, data)
	if err := tx.InsertPost(ctx, post); err != nil {
		return nil, err
	}
	return map[string]any{"guid": guid}, nil
}

func (r *Registry) updatePost(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	guid, err := requireString(data, "update post", "guid", "id")
	if err != nil {
		return nil, err
	}
	post, err := tx.PostByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "update post",
			fmt.Sprintf("post %q not found", guid), nil)
	}

	applyPostFields(post, data)
	post.UpdatedAt = time.Now().UTC()
	if err := tx.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	return map[string]any{"guid": guid}, nil
}

// deletePost removes the post and, by hand, its job rows; processing_job has
// no foreign key on post_guid.
func (r *Registry) deletePost(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	guid, err := requireString(data, "delete post", "guid", "id")
	if err != nil {
		return nil, err
	}
	jobs, err := tx.DeleteJobsForPost(ctx, guid)
	if err != nil {
		return nil, err
	}
	existed, err := tx.DeletePost(ctx, guid)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, services.Wrap(services.ErrNotFound, "actions", "delete post",
			fmt.Sprintf("post %q not found", guid), nil)
	}
	if jobs > 0 {
		if _, err := refreshRunCounters(ctx, tx); err != nil {
			return nil, err
		}
	}
	return map[string]any{"guid": guid, "jobs_deleted": jobs}, nil
}

func applyPostFields(post *store.Post, data map[string]any) {
	if title, ok := stringParam(data, "title"); ok {
		post.Title = title
	}
	if audioURL, ok := stringParam(data, "audio_url"); ok {
		post.AudioURL = audioURL
	}
	if path, ok := stringParam(data, "processed_audio_path"); ok {
		post.ProcessedAudioPath = path
	}
	if feedID, ok := int64Param(data, "feed_id"); ok {
		post.FeedID = feedID
	}
	if published, ok := stringParam(data, "published_at"); ok {
		if when, err := time.Parse(time.RFC3339, published); err == nil {
			utc := when.UTC()
			post.PublishedAt = &utc
		}
	}
}

func (r *Registry) createFeed(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	url, err := requireString(data, "create feed", "url")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	feed := &store.Feed{URL: url, CreatedAt: now, UpdatedAt: now}
	if title, ok := stringParam(data, "title"); ok {
		feed.Title = title
	}
	id, err := tx.InsertFeed(ctx, feed)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

func (r *Registry) updateFeed(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	id, ok := int64Param(data, "id")
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "actions", "update feed", "id required", nil)
	}
	feed, err := tx.FeedByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "update feed",
			fmt.Sprintf("feed %d not found", id), nil)
	}

	if url, ok := stringParam(data, "url"); ok {
		feed.URL = url
	}
	if title, ok := stringParam(data, "title"); ok {
		feed.Title = title
	}
	if checked, ok := stringParam(data, "last_checked_at"); ok {
		if when, err := time.Parse(time.RFC3339, checked); err == nil {
			utc := when.UTC()
			feed.LastCheckedAt = &utc
		}
	}
	feed.UpdatedAt = time.Now().UTC()
	if err := tx.UpdateFeed(ctx, feed); err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

func (r *Registry) deleteFeed(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	id, ok := int64Param(data, "id")
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "actions", "delete feed", "id required", nil)
	}
	existed, err := tx.DeleteFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, services.Wrap(services.ErrNotFound, "actions", "delete feed",
			fmt.Sprintf("feed %d not found", id), nil)
	}
	return map[string]any{"id": id}, nil
}

func (r *Registry) upsertSetting(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	key, err := requireString(data, "upsert setting", "key", "id")
	if err != nil {
		return nil, err
	}
	value := ""
	if raw, ok := data["value"]; ok {
		if text, ok := raw.(string); ok {
			value = text
		} else {
			value = fmt.Sprintf("%v", raw)
		}
	}
	if err := tx.UpsertSetting(ctx, key, value); err != nil {
		return nil, err
	}
	return map[string]any{"key": key}, nil
}

func (r *Registry) deleteSetting(ctx context.Context, tx *store.WriteTx, data map[string]any) (map[string]any, error) {
	key, err := requireString(data, "delete setting", "key", "id")
	if err != nil {
		return nil, err
	}
	existed, err := tx.DeleteSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, services.Wrap(services.ErrNotFound, "actions", "delete setting",
			fmt.Sprintf("setting %q not found", key), nil)
	}
	return map[string]any{"key": key}, nil
}
