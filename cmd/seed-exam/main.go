package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/database"
	"github.com/stemsi/ielts-backend/internal/logger"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/repository"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/validator"
)

// seed-exam imports a markdown file as a skill item. Reading and listening
// files are compiled as question markup; writing and speaking files become
// the task prompt.
//
//	seed-exam -file passage.md -name "Academic Reading 1"
//	seed-exam -file task2.md -exam 4 -kind writing
func main() {
	var (
		file   = flag.String("file", "", "Markdown file to import (required)")
		name   = flag.String("name", "", "Name of the exam to create")
		typ    = flag.String("type", "reading", "Exam type of the created exam")
		examID = flag.Int("exam", 0, "Append to this existing exam instead of creating one")
		kind   = flag.String("kind", "", "Skill kind of the item (defaults to the exam type)")
		order  = flag.Int("order", 0, "Display order of the item")
	)
	flag.Parse()

	if *file == "" || (*examID == 0 && *name == "") {
		flag.Usage()
		os.Exit(2)
	}
	if *kind == "" {
		*kind = *typ
	}
	if !validator.IsSkill(*kind) {
		fmt.Fprintf(os.Stderr, "unknown skill kind %q\n", *kind)
		os.Exit(2)
	}

	src, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	exams := repository.NewExamRepository(pool)
	items := repository.NewSkillItemRepository(pool)
	attempts := repository.NewAttemptRepository(pool)

	// The running server's exam cache expires on its own TTL.
	examService := service.NewExamService(exams, items, attempts, nil, log)
	itemService := service.NewSkillItemService(exams, items, attempts, nil, log)

	if *examID == 0 {
		exam, err := examService.Create(ctx, &model.CreateExamRequest{Name: *name, Type: *typ})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create exam")
		}
		*examID = exam.ID
		fmt.Printf("Created exam %q with ID %d\n", exam.Name, exam.ID)
	}

	req := &model.CreateSkillItemRequest{Kind: *kind, DisplayOrder: *order}
	switch strings.ToLower(*kind) {
	case string(model.SkillReading), string(model.SkillListening):
		req.QuestionMarkup = string(src)
	default:
		req.Content = string(src)
	}

	it, err := itemService.Create(ctx, *examID, req)
	if err != nil {
		log.Fatal().Err(err).Int("exam_id", *examID).Msg("Failed to create skill item")
	}

	answers := "none"
	if it.CorrectAnswer != nil {
		answers = *it.CorrectAnswer
	}
	fmt.Printf("Added %s item %d to exam %d, answers: %s\n", it.Kind, it.ID, *examID, answers)
}
