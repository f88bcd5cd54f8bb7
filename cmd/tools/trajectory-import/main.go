// cmd/tools/trajectory-import/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"haptic-trainer/internal/common/camunda"
	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/database"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/jigsaws"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/session"
	"haptic-trainer/internal/workflow"
)

func main() {
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Import command flags
	file := importCmd.String("file", "", "Kinematics file (76-column JIGSAWS format)")
	task := importCmd.String("task", "", "Task name (Suturing, Knot_Tying, Needle_Passing)")
	manipulator := importCmd.String("manipulator", "master_left", "Manipulator channel to extract")
	transcript := importCmd.String("transcript", "", "Optional gesture transcript; attaches gesture windows and imports one trajectory per segment")
	launch := importCmd.Bool("launch", false, "Start the reference-ingest process for each imported trajectory")

	// List command flags
	listTask := listCmd.String("task", "", "Task name to list trajectories for")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		importCmd.Parse(os.Args[2:])
		if *file == "" || *task == "" {
			fmt.Println("Error: file and task are required for import.")
			importCmd.Usage()
			os.Exit(1)
		}
		if !jigsaws.ValidTask(*task) {
			fmt.Printf("Error: unknown task %q. Valid tasks: %v\n", *task, jigsaws.Tasks())
			os.Exit(1)
		}
		if !jigsaws.Manipulator(*manipulator).Valid() {
			fmt.Printf("Error: unknown manipulator %q. Valid manipulators: %v\n", *manipulator, jigsaws.Manipulators())
			os.Exit(1)
		}
		if err := runImport(*file, *task, *manipulator, *transcript, *launch); err != nil {
			fmt.Printf("Import failed: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if *listTask == "" {
			fmt.Println("Error: task is required for list.")
			listCmd.Usage()
			os.Exit(1)
		}
		if err := runList(*listTask); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func runImport(file, task, manipulator, transcriptPath string, launch bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	kinematics, err := jigsaws.LoadKinematics(file)
	if err != nil {
		return err
	}
	frames, err := kinematics.Channel(jigsaws.Manipulator(manipulator))
	if err != nil {
		return err
	}
	fmt.Printf("Parsed %d frames (%.1fs) from %s\n",
		kinematics.Frames(), kinematics.Duration().Seconds(), file)

	ctx := context.Background()
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	defer pg.Close()

	store := session.NewStore(pg.DB)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	var launcher *workflow.Launcher
	if launch {
		camundaClient, err := camunda.NewClient(cfg.Camunda.BrokerAddress)
		if err != nil {
			return fmt.Errorf("zeebe connection failed: %w", err)
		}
		defer camundaClient.Close()
		launcher = workflow.NewLauncher(camundaClient, workflow.Config{
			ScoringProcess:   cfg.Camunda.ScoringProcess,
			ReferenceProcess: cfg.Camunda.ReferenceProcess,
		}, logger.NewZapAdapter(logger.New(cfg.Logging.Level, cfg.Logging.Format)))
	}

	// The whole recording always becomes one trajectory. With a transcript it
	// carries the gesture windows for per-gesture scoring, and each annotated
	// segment is additionally imported on its own so sessions can target
	// individual gestures.
	type cut struct {
		gesture string
		frames  []jigsaws.Frame
	}
	cuts := []cut{{gesture: "", frames: frames}}
	var windows []control.GestureWindow
	if transcriptPath != "" {
		segments, err := jigsaws.LoadTranscript(transcriptPath)
		if err != nil {
			return err
		}
		windows = jigsaws.GestureWindows(segments, len(frames))
		for _, seg := range segments {
			sliced := jigsaws.SliceFrames(frames, seg)
			if len(sliced) < 2 {
				fmt.Printf("Skipping %s: segment too short (%d frames)\n", seg.Gesture, len(sliced))
				continue
			}
			cuts = append(cuts, cut{gesture: seg.Gesture, frames: sliced})
		}
		if len(cuts) == 1 {
			fmt.Printf("Transcript %s yields no usable segments; importing the whole recording only.\n", transcriptPath)
		}
	}

	for _, c := range cuts {
		id := uuid.New().String()
		trajectory, err := jigsaws.ToTrajectory(id, task, c.gesture, c.frames)
		if err != nil {
			return err
		}
		if c.gesture == "" {
			trajectory.Segments = windows
		}
		payload, err := json.Marshal(trajectory)
		if err != nil {
			return fmt.Errorf("encode trajectory: %w", err)
		}

		duration := time.Duration(len(c.frames)) * jigsaws.FrameDuration
		meta := &models.TrajectoryMeta{
			ID:          id,
			Task:        task,
			Gesture:     c.gesture,
			Manipulator: manipulator,
			SourceFile:  filepath.Base(file),
			Frames:      len(c.frames),
			DurationMs:  duration.Milliseconds(),
			Rate:        jigsaws.FrameRateHz,
			CreatedAt:   time.Now().UTC(),
		}
		if err := store.CreateTrajectory(ctx, meta, payload); err != nil {
			return err
		}

		label := "full recording"
		if c.gesture != "" {
			label = fmt.Sprintf("%s (%s)", c.gesture, jigsaws.DescribeGesture(gestureID(c.gesture)))
		}
		fmt.Printf("Imported %s: %s, %d frames, %.1fs\n", id, label, meta.Frames, duration.Seconds())

		if launcher != nil {
			if err := launcher.LaunchReferenceIngest(ctx, id, task); err != nil {
				return fmt.Errorf("reference-ingest launch for %s: %w", id, err)
			}
			fmt.Printf("Started reference-ingest for %s\n", id)
		}
	}

	fmt.Printf("Done. Imported %d trajectories.\n", len(cuts))
	return nil
}

// gestureID recovers the numeric ID from transcript notation ("G4" -> 4).
func gestureID(gesture string) int {
	var id int
	fmt.Sscanf(gesture, "G%d", &id)
	return id
}

func runList(task string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	defer pg.Close()

	store := session.NewStore(pg.DB)
	metas, err := store.FindTrajectoriesByTask(context.Background(), task)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-8s  %-12s  %8s  %8s  %s\n",
		"ID", "GESTURE", "MANIPULATOR", "FRAMES", "SECONDS", "SOURCE")
	for _, meta := range metas {
		gesture := meta.Gesture
		if gesture == "" {
			gesture = "-"
		}
		fmt.Printf("%-36s  %-8s  %-12s  %8d  %8.1f  %s\n",
			meta.ID, gesture, meta.Manipulator, meta.Frames,
			float64(meta.DurationMs)/1000, meta.SourceFile)
	}
	fmt.Printf("%d trajectories for %s.\n", len(metas), task)
	return nil
}

func help() {
	fmt.Println(`
Usage: trajectory-import <command> [flags]

Commands:
  import  Parse a JIGSAWS kinematics recording and store it as reference trajectories
  list    List stored trajectories for a task
  help    Show this help message

Examples:
  trajectory-import import -file Suturing_B001.txt -task Suturing -manipulator master_left
  trajectory-import import -file Suturing_B001.txt -task Suturing -transcript Suturing_B001_transcript.txt -launch
  trajectory-import list -task Suturing

Use 'trajectory-import <command> -h' for more information about a command.
`)
}
