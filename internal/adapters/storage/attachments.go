package storage

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"vitigo_crm_backend/internal/email"
	queryrepo "vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/platform/logger"
)

// AttachmentStore couples object storage with the query attachment records.
type AttachmentStore struct {
	svc     *MinIOService
	bucket  string
	queries *queryrepo.Repository
	log     *logger.Logger
}

func NewAttachmentStore(svc *MinIOService, bucket string, queries *queryrepo.Repository, log *logger.Logger) *AttachmentStore {
	return &AttachmentStore{svc: svc, bucket: bucket, queries: queries, log: log}
}

// Save validates, uploads and records one attachment for a query.
func (s *AttachmentStore) Save(ctx context.Context, queryID int64, fileName, contentType string, r io.Reader, size int64) (*queryrepo.Attachment, error) {
	if err := s.svc.ValidateContentType(contentType); err != nil {
		return nil, err
	}
	if err := s.svc.ValidateFileSize(size); err != nil {
		return nil, err
	}

	folder := fmt.Sprintf("queries/%d", queryID)
	fileKey, err := s.svc.UploadFile(ctx, s.bucket, folder, fileName, contentType, r, size)
	if err != nil {
		return nil, err
	}

	attachment := &queryrepo.Attachment{
		QueryID:     queryID,
		FileName:    fileName,
		FileKey:     fileKey,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if err := s.queries.AddAttachment(ctx, attachment); err != nil {
		// Keep storage consistent with the record; best effort.
		if delErr := s.svc.DeleteObject(ctx, s.bucket, fileKey); delErr != nil {
			s.log.Error("orphaned attachment object", "file_key", fileKey, "error", delErr)
		}
		return nil, err
	}
	return attachment, nil
}

// ListForQuery returns the attachment records of a query.
func (s *AttachmentStore) ListForQuery(ctx context.Context, queryID int64) ([]queryrepo.Attachment, error) {
	return s.queries.ListAttachments(ctx, queryID)
}

// DownloadURL returns a presigned GET URL for an attachment.
func (s *AttachmentStore) DownloadURL(ctx context.Context, fileKey string) (*PresignedURL, error) {
	return s.svc.GenerateDownloadURL(ctx, s.bucket, fileKey)
}

// FetchForQuery loads a query's attachments into memory for outbound email.
// Downloads run in parallel; an unreadable object is skipped, not fatal.
func (s *AttachmentStore) FetchForQuery(ctx context.Context, queryID int64) ([]email.Attachment, error) {
	records, err := s.queries.ListAttachments(ctx, queryID)
	if err != nil {
		return nil, err
	}

	fetched := make([]*email.Attachment, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			obj, err := s.svc.DownloadFile(gctx, s.bucket, rec.FileKey)
			if err != nil {
				s.log.Error("skip unreadable attachment", "file_key", rec.FileKey, "error", err)
				return nil
			}
			content, err := io.ReadAll(obj)
			obj.Close()
			if err != nil {
				s.log.Error("skip unreadable attachment", "file_key", rec.FileKey, "error", err)
				return nil
			}
			fetched[i] = &email.Attachment{FileName: rec.FileName, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]email.Attachment, 0, len(records))
	for _, a := range fetched {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}
