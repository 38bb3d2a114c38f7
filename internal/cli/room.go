package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizroom-service/internal/app"
)

// NewRoomCmd groups room administration commands.
func NewRoomCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Manage quiz rooms",
	}
	cmd.AddCommand(newRoomCreateCmd(configPath))
	return cmd
}

func newRoomCreateCmd(configPath *string) *cobra.Command {
	var req app.CreateRoomRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a waiting room for a catalog quiz and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !storeIsShared(cfg) {
				log.Warn("memory store: the room disappears when this command exits")
			}
			deps, err := openDependencies(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			room, err := deps.rooms.CreateRoom(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), room.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.QuizID, "quiz", "", "catalog quiz id")
	cmd.Flags().IntVar(&req.MaxPlayers, "max-players", 0, "room capacity (default from config)")
	cmd.Flags().IntVar(&req.MinPlayers, "min-players", 0, "players needed before the host starts (default from config)")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}
