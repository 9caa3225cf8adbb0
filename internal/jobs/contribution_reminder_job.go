package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/queue"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContributionReminderPayload is the payload for a single member reminder
type ContributionReminderPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	ChamaName string    `json:"chama_name"`
	Amount    float64   `json:"amount"`
	DueDate   time.Time `json:"due_date"`
}

// ContributionReminderJob sweeps chamas whose contribution date is due and
// fans out one reminder notification per active member through the queue
type ContributionReminderJob struct {
	db            *gorm.DB
	queue         *queue.RedisQueue
	notifications *notification.Service
	scheduler     *gocron.Scheduler
}

// NewContributionReminderJob creates a new reminder job
func NewContributionReminderJob(db *gorm.DB, q *queue.RedisQueue, notifications *notification.Service) *ContributionReminderJob {
	return &ContributionReminderJob{
		db:            db,
		queue:         q,
		notifications: notifications,
		scheduler:     gocron.NewScheduler(time.UTC),
	}
}

// Schedule runs the due-contribution sweep every day
func (j *ContributionReminderJob) Schedule() {
	if _, err := j.scheduler.Every(1).Day().At("08:00").Do(func() {
		if err := j.EnqueueDueReminders(context.Background()); err != nil {
			log.Printf("contribution reminder sweep failed: %v", err)
		}
	}); err != nil {
		log.Printf("failed to schedule contribution reminder sweep: %v", err)
		return
	}
	j.scheduler.StartAsync()
}

// Stop stops the scheduler
func (j *ContributionReminderJob) Stop() {
	j.scheduler.Stop()
}

// EnqueueDueReminders finds active chamas whose next contribution date falls
// within the next day, enqueues a reminder for each active member, and
// advances the chama's next contribution date
func (j *ContributionReminderJob) EnqueueDueReminders(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, 1)

	var chamas []models.Chama
	if err := j.db.Preload("Members", "is_active = ?", true).
		Where("is_active = ? AND next_contribution_date <= ?", true, cutoff).
		Find(&chamas).Error; err != nil {
		return fmt.Errorf("failed to find due chamas: %w", err)
	}

	for _, chama := range chamas {
		for _, member := range chama.Members {
			payload := ContributionReminderPayload{
				UserID:    member.UserID,
				ChamaName: chama.Name,
				Amount:    chama.ContributionAmount,
				DueDate:   chama.NextContributionDate,
			}
			if _, err := j.queue.Enqueue(ctx, queue.JobTypeContributionReminder, payload); err != nil {
				log.Printf("failed to enqueue reminder for user %s: %v", member.UserID, err)
			}
		}

		next := chama.NextContributionDate.AddDate(0, 1, 0)
		if chama.ContributionFrequency == models.FrequencyWeekly {
			next = chama.NextContributionDate.AddDate(0, 0, 7)
		}
		if err := j.db.Model(&models.Chama{}).
			Where("id = ?", chama.ID).
			Update("next_contribution_date", next).Error; err != nil {
			log.Printf("failed to advance contribution date for chama %s: %v", chama.ID, err)
		}
	}

	return nil
}

// HandleReminder writes the reminder notification for one member
func (j *ContributionReminderJob) HandleReminder(ctx context.Context, job queue.Job) error {
	var payload ContributionReminderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal reminder payload: %w", err)
	}

	_, err := j.notifications.Notify(payload.UserID, "Contribution Due",
		fmt.Sprintf("Your contribution of KSh %.2f to %s is due on %s",
			payload.Amount, payload.ChamaName, payload.DueDate.Format("2 Jan 2006")),
		models.NotificationContributionDue)
	return err
}
