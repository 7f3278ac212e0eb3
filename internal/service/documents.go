package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/pagination"
)

// ContentIndexer writes content units into both tiers.
type ContentIndexer interface {
	Index(ctx context.Context, units []*domain.ContentUnit, scope domain.Scope) (*domain.IndexReport, error)
}

// UnitDeleter removes units from one tier.
type UnitDeleter interface {
	Delete(ctx context.Context, ids []string) error
}

// ContentDeleter removes units from the document store.
type ContentDeleter interface {
	DeleteMany(ctx context.Context, ids []string) error
}

// UnitInput is one pre-classified unit as submitted by a client.
type UnitInput struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type UploadRequest struct {
	Filename  string
	SessionID string
	Units     []UnitInput
}

type UploadResult struct {
	Document *domain.Document    `json:"document"`
	Report   *domain.IndexReport `json:"report"`
}

// DocumentService indexes uploads and keeps a record of each one so its units
// can be listed and deleted later.
type DocumentService struct {
	indexer  ContentIndexer
	docs     DocumentRepository
	sessions SessionRepository
	tx       TxRunner
	vectors  UnitDeleter
	contents ContentDeleter
	uuidGen  UUIDGenerator
}

func NewDocumentService(indexer ContentIndexer, docs DocumentRepository, sessions SessionRepository, tx TxRunner, vectors UnitDeleter, contents ContentDeleter, uuidGen UUIDGenerator) *DocumentService {
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &DocumentService{
		indexer:  indexer,
		docs:     docs,
		sessions: sessions,
		tx:       tx,
		vectors:  vectors,
		contents: contents,
		uuidGen:  uuidGen,
	}
}

// Upload indexes the request's units under the user and optional session and
// records the document. Units that fail are listed in the report; the
// document counts only units present in both tiers.
func (s *DocumentService) Upload(ctx context.Context, userID string, req UploadRequest) (*UploadResult, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(req.Units) == 0 {
		return nil, domain.ErrNoUnits
	}
	if req.SessionID != "" {
		if _, err := s.sessions.GetForUser(ctx, req.SessionID, userID); err != nil {
			return nil, err
		}
	}

	units := make([]*domain.ContentUnit, len(req.Units))
	var size int64
	for i, in := range req.Units {
		units[i] = &domain.ContentUnit{Kind: domain.Kind(in.Kind), Payload: in.Content}
		size += int64(len(in.Content))
	}

	scope := domain.Scope{OwnerUserID: userID, SessionID: req.SessionID}
	report, err := s.indexer.Index(ctx, units, scope)
	if err != nil {
		return nil, err
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), userID, req.SessionID, filename, size, report, time.Now().UTC())
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		// The units are unreachable without the record; queue both halves.
		s.queueRepairs(ctx, doc.UnitIDs, domain.TierVector, domain.TierDocument)
		return nil, err
	}

	return &UploadResult{Document: doc, Report: report}, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	return s.docs.GetForUser(ctx, id, userID)
}

// List pages the user's documents; a non-empty sessionID must belong to the
// user and narrows the list to that session.
func (s *DocumentService) List(ctx context.Context, userID, sessionID, cursor string, limit int) (*pagination.PageResult[*domain.Document], error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	if sessionID != "" {
		if _, err := s.sessions.GetForUser(ctx, sessionID, userID); err != nil {
			return nil, err
		}
	}
	return s.docs.ListByUser(ctx, userID, sessionID, c, limit)
}

// Delete removes the document's units from both tiers and drops the record.
// A tier delete that fails is left to the repair worker, queued in the same
// transaction that removes the record.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.docs.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}

	var failed []domain.Tier
	if len(doc.UnitIDs) > 0 {
		if err := s.vectors.Delete(ctx, doc.UnitIDs); err != nil {
			log.Printf("document %s: vector delete failed, queueing repair: %v", doc.ID, err)
			failed = append(failed, domain.TierVector)
		}
		if err := s.contents.DeleteMany(ctx, doc.UnitIDs); err != nil {
			log.Printf("document %s: content delete failed, queueing repair: %v", doc.ID, err)
			failed = append(failed, domain.TierDocument)
		}
	}

	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Delete(ctx, doc.ID, userID); err != nil {
			return err
		}
		for _, tier := range failed {
			for _, unitID := range doc.UnitIDs {
				job := domain.NewRepairJob(s.uuidGen.NewString(), unitID, tier, time.Now().UTC())
				if err := repos.RepairJobs().Create(ctx, job); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *DocumentService) queueRepairs(ctx context.Context, unitIDs []string, tiers ...domain.Tier) {
	if len(unitIDs) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	err := s.tx.WithTx(bg, func(repos TxRepositories) error {
		for _, tier := range tiers {
			for _, unitID := range unitIDs {
				job := domain.NewRepairJob(s.uuidGen.NewString(), unitID, tier, time.Now().UTC())
				if err := repos.RepairJobs().Create(bg, job); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("failed to queue repairs for %d units: %v", len(unitIDs), err)
	}
}
