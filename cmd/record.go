package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahulv/skilltrack/internal/app"
	"github.com/rahulv/skilltrack/internal/recorder"
	"github.com/rahulv/skilltrack/internal/store"
)

// recordCmd exercises the full dual-write path from the command line,
// which is also handy for scripting imports.
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a learning interaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve DB path: %w", err)
		}

		a, err := app.New(cfg, app.Options{
			DBPath: dbPath,
			OnMastery: func(skillID string, mastery float64) {
				fmt.Printf("Skill %s mastery: %.0f%%\n", skillID, mastery*100)
			},
		})
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		subject, _ := flags.GetString("subject")
		topic, _ := flags.GetString("topic")
		skillID, _ := flags.GetString("skill")
		questionID, _ := flags.GetString("question")
		sessionID, _ := flags.GetString("session")
		userID, _ := flags.GetString("user")
		correct, _ := flags.GetBool("correct")
		confidence, _ := flags.GetString("confidence")
		seconds, _ := flags.GetInt("seconds")
		hints, _ := flags.GetInt("hints")

		a.Recorder.Record(recorder.Event{
			UserID:           userID,
			SkillID:          skillID,
			Subject:          subject,
			Topic:            topic,
			QuestionID:       questionID,
			SessionID:        sessionID,
			Correct:          correct,
			Confidence:       store.Confidence(confidence),
			TimeSpentSeconds: seconds,
			HintsUsed:        hints,
		})
		// Close drains the recorder, so the append and the direct call
		// finish before we return.
		return nil
	},
}

func init() {
	flags := recordCmd.Flags()
	flags.String("user", "", "User id")
	flags.String("subject", "", "Subject, e.g. math")
	flags.String("topic", "", "Topic within the subject")
	flags.String("skill", "", "Skill id")
	flags.String("question", "", "Question id")
	flags.String("session", "", "Session id")
	flags.Bool("correct", false, "Whether the answer was correct")
	flags.String("confidence", string(store.ConfidenceMedium), "Confidence: low, medium, or high")
	flags.Int("seconds", 0, "Time spent in seconds")
	flags.Int("hints", 0, "Hints used")

	recordCmd.MarkFlagRequired("skill")
	recordCmd.MarkFlagRequired("question")
	recordCmd.MarkFlagRequired("session")
	recordCmd.MarkFlagRequired("subject")
}
