package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"fieldcheck/internal/app"
	"fieldcheck/internal/config"
	"fieldcheck/internal/model"
)

func weight(w float64) *float64 { return &w }

// sampleTemplates are seeded in order; sub-checklists come before their users
func sampleTemplates() []*model.Template {
	ppe := &model.Template{
		ID:          "ppe-check",
		Title:       "PPE check",
		Description: "Personal protective equipment for a work crew.",
		Groups: []model.Group{
			{ID: "ppe", Title: "Equipment", Order: 1, QuestionIDs: []string{"helmets", "vests", "missing"}},
		},
		Questions: []model.Question{
			{ID: "helmets", Text: "Is every crew member wearing a helmet?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "ppe", Weight: weight(3)},
			{ID: "vests", Text: "Are high-visibility vests worn?", ResponseType: model.ResponseYesNo, Order: 2, IsRequired: true, GroupID: "ppe", Weight: weight(2)},
			{ID: "missing", Text: "Who is missing equipment?", ResponseType: model.ResponseText, Order: 3, GroupID: "ppe", ParentID: "helmets", ConditionValue: "no"},
		},
	}

	site := &model.Template{
		ID:                "site-safety",
		Title:             "Daily site safety walk",
		Description:       "Morning walk-through before work starts.",
		EvidenceMandatory: true,
		Groups: []model.Group{
			{ID: "access", Title: "Access", Order: 1, QuestionIDs: []string{"fenced", "fence-type", "fence-damage"}},
			{ID: "fire", Title: "Fire safety", Order: 2, QuestionIDs: []string{"pressure", "extinguisher-photo", "serviced"}},
			{ID: "crew", Title: "Crew", Order: 3, QuestionIDs: []string{"crew-on-site", "start-time", "signoff"}},
		},
		Questions: []model.Question{
			{ID: "fenced", Text: "Is the site perimeter fenced?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "access", AllowsPhoto: true, Weight: weight(2)},
			{ID: "fence-type", Text: "Fence type", ResponseType: model.ResponseMultipleChoice, Order: 2, IsRequired: true, GroupID: "access",
				Options:  []model.Option{{ID: "opt_chain", Label: "Chain link"}, {ID: "opt_panel", Label: "Steel panel"}, {ID: "opt_wood", Label: "Timber hoarding"}},
				ParentID: "fenced", ConditionValue: "yes"},
			{ID: "fence-damage", Text: "Describe any damage to the hoarding", ResponseType: model.ResponseText, Order: 3, GroupID: "access",
				ParentID: "fence-type", ConditionValue: "opt_wood"},
			{ID: "pressure", Text: "Extinguisher pressure (bar)", ResponseType: model.ResponseNumeric, Order: 1, IsRequired: true, GroupID: "fire",
				ComplianceRule: "value >= 2.0 && value <= 8.0"},
			{ID: "extinguisher-photo", Text: "Photo of the extinguisher gauge", ResponseType: model.ResponsePhoto, Order: 2, IsRequired: true, GroupID: "fire"},
			{ID: "serviced", Text: "Last service date", ResponseType: model.ResponseDate, Order: 3, GroupID: "fire"},
			{ID: "crew-on-site", Text: "Is a crew working today?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "crew",
				HasSubChecklist: true, SubChecklistID: "ppe-check", SubChecklistCondition: "yes"},
			{ID: "start-time", Text: "Work start time", ResponseType: model.ResponseTime, Order: 2, GroupID: "crew"},
			{ID: "signoff", Text: "Supervisor signature", ResponseType: model.ResponseSignature, Order: 3, IsRequired: true, GroupID: "crew"},
		},
	}
	return []*model.Template{ppe, site}
}

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close(context.Background())

	for _, t := range sampleTemplates() {
		existing, err := a.TemplateRepo.GetByID(ctx, t.ID)
		if err != nil {
			logger.Error("Failed to read template", slog.String("template_id", t.ID), slog.Any("error", err))
			os.Exit(1)
		}
		if existing == nil {
			_, err = a.Templates.Create(ctx, t)
		} else {
			_, err = a.Templates.Update(ctx, t.ID, t)
		}
		if err != nil {
			logger.Error("Failed to save template", slog.String("template_id", t.ID), slog.Any("error", err))
			os.Exit(1)
		}

		published, err := a.Templates.Publish(ctx, t.ID)
		if err != nil {
			logger.Error("Failed to publish template", slog.String("template_id", t.ID), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Seeded template",
			slog.String("template_id", published.ID),
			slog.String("version", published.Version),
			slog.Int("questions", len(published.Questions)))
	}
}
