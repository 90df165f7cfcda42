package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"petsos/models"
)

// CasesCollection holds one document per SOS case, keyed by case id.
const CasesCollection = "sos_cases"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// FirestoreDB wraps the Firestore client
type FirestoreDB struct {
	client *firestore.Client
	logger *logrus.Logger
}

// NewFirestoreDB initializes a new Firestore client
func NewFirestoreDB(ctx context.Context, projectID, credentialsPath string, logger *logrus.Logger) (*FirestoreDB, error) {
	opt := option.WithCredentialsFile(credentialsPath)

	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	logger.WithField("project_id", projectID).Info("✅ Connected to Firestore")

	return &FirestoreDB{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Firestore client
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// --- Case Operations ---

// SaveCase writes the full case document, replacing any previous version.
func (db *FirestoreDB) SaveCase(ctx context.Context, c models.SOSCase) error {
	_, err := db.client.Collection(CasesCollection).Doc(c.ID.String()).Set(ctx, NewCaseDocument(c))
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}
	return nil
}

// GetCase retrieves a case by ID
func (db *FirestoreDB) GetCase(ctx context.Context, id string) (models.SOSCase, error) {
	doc, err := db.client.Collection(CasesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.SOSCase{}, fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.SOSCase{}, fmt.Errorf("failed to get case: %w", err)
	}

	var stored CaseDocument
	if err := doc.DataTo(&stored); err != nil {
		return models.SOSCase{}, fmt.Errorf("failed to parse case %s: %w", id, err)
	}
	c, err := stored.Model()
	if err != nil {
		return models.SOSCase{}, fmt.Errorf("failed to parse case %s: %w", id, err)
	}
	return c, nil
}

// ListCases retrieves all cases. Documents that fail to decode are skipped.
func (db *FirestoreDB) ListCases(ctx context.Context) ([]models.SOSCase, error) {
	iter := db.client.Collection(CasesCollection).Documents(ctx)
	defer iter.Stop()

	var cases []models.SOSCase
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate cases: %w", err)
		}

		var stored CaseDocument
		if err := doc.DataTo(&stored); err != nil {
			db.logger.WithError(err).WithField("doc_id", doc.Ref.ID).Warn("skipping unreadable case")
			continue
		}
		c, err := stored.Model()
		if err != nil {
			db.logger.WithError(err).WithField("doc_id", doc.Ref.ID).Warn("skipping unreadable case")
			continue
		}
		cases = append(cases, c)
	}

	return cases, nil
}
