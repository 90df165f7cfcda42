package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"petsos/barcode"
	"petsos/config"
	"petsos/db"
	"petsos/models"
	"petsos/sos"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := cfg.NewLogger()
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}
	if !cfg.Firebase.Enabled() {
		logger.Fatal("FIREBASE_PROJECT_ID and FIREBASE_CREDENTIALS_PATH must be set to seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	firestoreDB, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Firestore")
	}
	defer firestoreDB.Close()

	svc, err := sos.NewRemoteService(ctx, firestoreDB, sos.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load existing cases")
	}
	defer svc.Close()

	logger.Info("🌱 Starting database seeding...")

	ids, err := seedCases(ctx, svc)
	if err != nil {
		logger.WithError(err).Fatal("Failed to seed cases")
	}
	for _, id := range ids {
		stored, err := firestoreDB.GetCase(ctx, id.String())
		if err != nil {
			logger.WithError(err).Fatal("Seeded case did not read back")
		}
		logger.WithFields(logrus.Fields{
			"case_id": stored.ID,
			"status":  stored.Status,
			"events":  len(stored.Events),
		}).Info("✓ Seeded case")
	}

	if err := printBarcodes(); err != nil {
		logger.WithError(err).Fatal("Failed to generate demo barcodes")
	}

	logger.Info("✅ Database seeding completed successfully!")
}

// seedCases raises one case per lifecycle stage so dashboards have something to show.
func seedCases(ctx context.Context, svc sos.CaseService) ([]uuid.UUID, error) {
	owner, rider := uuid.New(), uuid.New()
	eta, distance := 9, 2.4

	requests := []models.SOSRequest{
		{
			RequesterID:   owner,
			IncidentType:  models.IncidentHeatStroke,
			Priority:      models.PriorityCritical,
			Pickup:        models.Coordinate{Latitude: 13.7563, Longitude: 100.5018},
			ContactNumber: "+66 81 000 0001",
			Notes:         "Collapsed on the balcony",
		},
		{
			RequesterID:  owner,
			IncidentType: models.IncidentInjury,
			Pickup:       models.Coordinate{Latitude: 13.7400, Longitude: 100.5200},
			Destination:  &models.Coordinate{Latitude: 13.7310, Longitude: 100.5290},
		},
		{
			RequesterID:    owner,
			IncidentType:   models.IncidentTransport,
			Priority:       models.PriorityRoutine,
			Pickup:         models.Coordinate{Latitude: 13.7650, Longitude: 100.5380},
			AttachmentURLs: []string{"https://example.com/demo/carrier.jpg"},
		},
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		c, err := svc.CreateCase(ctx, req)
		if err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}

	if _, err := svc.AcceptCase(ctx, ids[0], rider); err != nil {
		return nil, err
	}
	if _, err := svc.MarkEnRoute(ctx, ids[0], rider, &eta, &distance); err != nil {
		return nil, err
	}
	svc.RecordBeacon(ctx, ids[0], models.Coordinate{Latitude: 13.7520, Longitude: 100.4990}, "crossing the bridge")

	if _, err := svc.CancelCase(ctx, ids[2], "Arranged own transport"); err != nil {
		return nil, err
	}
	return ids, nil
}

func printBarcodes() error {
	gen := barcode.NewGenerator()
	for _, species := range []barcode.Species{barcode.SpeciesDog, barcode.SpeciesCat, barcode.SpeciesRabbit, barcode.SpeciesOther} {
		var (
			code string
			err  error
		)
		for try := 0; try < 3; try++ {
			if code, err = gen.Generate(species); err == nil {
				break
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\n", species, code)
	}
	return nil
}
