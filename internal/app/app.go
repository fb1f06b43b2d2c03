package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/batch"
	"github.com/hadron-robotics/hadron_rover/internal/camera"
	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/drive"
	"github.com/hadron-robotics/hadron_rover/internal/fanout"
	"github.com/hadron-robotics/hadron_rover/internal/joystick"
	"github.com/hadron-robotics/hadron_rover/internal/models"
	"github.com/hadron-robotics/hadron_rover/internal/motor"
	"github.com/hadron-robotics/hadron_rover/internal/rtc"
	"github.com/hadron-robotics/hadron_rover/internal/stream"
	"github.com/hadron-robotics/hadron_rover/internal/telemetry"
	"github.com/hadron-robotics/hadron_rover/internal/ws"
	"golang.org/x/sync/errgroup"
)

const healthInterval = 30 * time.Second

// App owns every component of the vehicle and their lifecycles. Commands
// reach the motors only through the drive controller; frames reach clients
// only through the frame buffer and cache.
type App struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	cfg config.Config

	buffer *stream.FrameBuffer
	cache  *stream.FrameCache

	actuator   motor.Actuator
	controller *drive.Controller
	batcher    *batch.Batcher

	capture *camera.Capture

	joystick *joystick.Stream
	mapper   *joystick.Mapper

	notifier  *fanout.Fanout
	server    *ws.Server
	collector *telemetry.Collector
}

func NewApp(cfg config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	buffer := stream.NewFrameBuffer()
	cache := stream.NewFrameCache(cfg.StreamCfg.MaxCachedFrames, cfg.StreamCfg.FrameCacheTTL)

	return &App{
		ctx:       ctx,
		ctxCancel: cancel,
		cfg:       cfg,
		buffer:    buffer,
		cache:     cache,
		actuator:  motor.NewHBridge(cfg.MotorCfg),
		capture:   camera.NewCapture(cfg.CameraCfg, buffer, cache),
		joystick:  joystick.NewStream(cfg.JoystickCfg),
		mapper:    joystick.NewMapper(cfg.JoystickCfg, cfg.MotorCfg.TurnSpeed),
		notifier:  fanout.New(),
	}
}

func (a *App) Start() error {
	group, groupCtx := errgroup.WithContext(a.ctx)
	log.Println("starting...")

	// Motor hardware that fails to initialize is not fatal: the vehicle
	// keeps serving frames and state, it just cannot move.
	present := true
	err := a.actuator.Init()
	if err != nil {
		log.Printf("error: motor init failed, running in dummy mode: %s\n", err.Error())
		a.actuator = motor.NewDummy()
		present = false
	}

	a.controller = drive.NewController(a.cfg.MotorCfg, a.actuator, present,
		drive.NewThrottle(a.cfg.ControlCfg.MinCommandInterval))
	a.controller.Subscribe(func(state models.DriveState) {
		a.notifier.Broadcast("robot_state", state)
	})

	a.batcher = batch.NewBatcher(a.cfg.ControlCfg, a.controller.Execute)
	a.server = ws.NewServer(a.cfg.ServerCfg, a, a.notifier)

	a.collector, err = telemetry.NewCollector(a.cfg.ServerCfg.NetInterface)
	if err != nil {
		log.Printf("error: telemetry disabled: %s\n", err.Error())
		a.collector = nil
	}

	a.registerJoystickHandlers(groupCtx)

	defer func() {
		log.Println("stopping...")
		err := a.actuator.Stop()
		if err != nil {
			log.Printf("error: failed zeroing motors on shutdown: %s\n", err.Error())
		}
		a.notifier.Close()
	}()

	// kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-signalChannel:
			log.Printf("received signal: %s\n", sig)
			a.ctxCancel()
			return fmt.Errorf("received signal: %s", sig)
		case <-groupCtx.Done():
			log.Println("closing signal goroutine")
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.capture.Start(groupCtx)
	})

	group.Go(func() error {
		return a.batcher.Run(groupCtx)
	})

	group.Go(func() error {
		return a.runJoystick(groupCtx)
	})

	group.Go(func() error {
		return a.server.Run(groupCtx)
	})

	group.Go(func() error {
		return a.healthCheck(groupCtx)
	})

	err = group.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("context was cancelled")
			return nil
		}
		return fmt.Errorf("vehicle stopping due to error - %w", err)
	}

	log.Println("shutting down")
	return nil
}

// Stop cancels the app context; Start unwinds from there.
func (a *App) Stop() {
	a.ctxCancel()
}

// registerJoystickHandlers feeds mapped stick events straight into the
// controller. Joystick input is real time and never batched.
func (a *App) registerJoystickHandlers(ctx context.Context) {
	a.joystick.OnEvent(joystick.KindAxis, func(event joystick.Event) {
		cmd, ok := a.mapper.HandleAxis(event)
		if !ok {
			return
		}
		a.submitJoystickCommand(ctx, cmd)
	})

	a.joystick.OnEvent(joystick.KindButton, func(event joystick.Event) {
		cmd, ok := a.mapper.HandleButton(event)
		if !ok {
			return
		}
		a.submitJoystickCommand(ctx, cmd)
	})
}

func (a *App) submitJoystickCommand(ctx context.Context, cmd models.MotionCommand) {
	err := a.controller.Execute(ctx, cmd)
	if err != nil {
		log.Printf("error: joystick command %s failed: %s\n", cmd.Kind, err.Error())
	}
}

// runJoystick keeps the vehicle usable without a stick: open failures log
// once and the loop never starts, and losing the device mid-run (unplug,
// read error) degrades instead of taking the other components down.
func (a *App) runJoystick(ctx context.Context) error {
	err := a.joystick.Start()
	if err != nil {
		log.Printf("continuing without joystick: %s\n", err.Error())
		return nil
	}

	err = a.joystick.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Printf("joystick lost, continuing without it: %s\n", err.Error())
		return nil
	}
	return err
}

func (a *App) healthCheck(ctx context.Context) error {
	healthTicker := time.NewTicker(healthInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("health checker stopped")
			return ctx.Err()
		case <-healthTicker.C:
			status := a.Status()
			log.Printf("healthcheck: motion=%s clients=%d frames=%d dropped=%d queued=%d\n",
				status.Motion, a.notifier.Count(), status.FramesCaptured,
				status.FramesDropped, status.QueuedCommands)
		}
	}
}

// Execute applies one command on the real-time path.
func (a *App) Execute(ctx context.Context, cmd models.MotionCommand) error {
	return a.controller.Execute(ctx, cmd)
}

// Enqueue routes one command through the coalescing batcher.
func (a *App) Enqueue(ctx context.Context, cmd models.MotionCommand) error {
	return a.batcher.Enqueue(ctx, cmd)
}

func (a *App) EmergencyStop() error {
	return a.controller.EmergencyStop()
}

func (a *App) DriveState() models.DriveState {
	return a.controller.State()
}

func (a *App) LatestFrame(maxAge time.Duration) (models.Frame, bool) {
	return a.cache.Latest(maxAge)
}

func (a *App) NewViewer() (*rtc.Viewer, error) {
	return rtc.NewViewer(a.cfg.CameraCfg, a.cfg.StreamCfg, a.buffer)
}

// Status assembles the pollable health view across every component.
func (a *App) Status() models.StatusSnapshot {
	state := a.controller.State()
	snapshot := models.StatusSnapshot{
		Motion:            state.Motion,
		IsActuatorPresent: a.controller.IsActuatorPresent(),
		CachedFrameCount:  a.cache.Len(),
		QueuedCommands:    a.batcher.QueuedCount(),
		CaptureRunning:    a.capture.Running(),
		FramesCaptured:    a.capture.FramesCaptured(),
		FramesDropped:     a.capture.FramesDropped(),
		JoystickPresent:   a.joystick.Present(),
		JoystickEvents:    a.joystick.EventCount(),
		JoystickErrors:    a.joystick.ErrorCount(),
		TimeStamp:         time.Now().UnixMilli(),
	}

	if a.collector != nil {
		rx, tx, err := a.collector.NetBytes()
		if err != nil {
			log.Printf("error: failed reading net stats: %s\n", err.Error())
		} else {
			snapshot.RxBytes = rx
			snapshot.TxBytes = tx
		}

		load, err := a.collector.Load1()
		if err != nil {
			log.Printf("error: failed reading load average: %s\n", err.Error())
		} else {
			snapshot.LoadAverage = load
		}
	}
	return snapshot
}
