package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"peoplemeet-client/internal/models"

	"github.com/spf13/cobra"
)

type appFunc func() *App

func parseCoordinate(s, name string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func loginCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL PASSWORD",
		Short: "Sign in and remember the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app().users.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			name := args[0]
			if res.User != nil {
				name = res.User.DisplayName()
			}
			cmd.Printf("Signed in as %s\n", name)
			return nil
		},
	}
}

func signupCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "signup EMAIL PASSWORD CONFIRM",
		Short: "Create an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app().users.SignUp(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			cmd.Println("Account created. Fill in your profile with `peoplemeet profile set`.")
			return nil
		},
	}
}

func recoverCommand(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Reset a forgotten password",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "send EMAIL",
			Short: "Email a 4 digit recovery code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app().users.SendRecoveryCode(cmd.Context(), args[0]); err != nil {
					return err
				}
				cmd.Println("Recovery code sent")
				return nil
			},
		},
		&cobra.Command{
			Use:   "check EMAIL CODE",
			Short: "Verify a recovery code",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app().users.CheckRecoveryCode(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				cmd.Println("Code is valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "change EMAIL CODE PASSWORD CONFIRM",
			Short: "Set a new password",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app().users.ChangePassword(cmd.Context(), args[0], args[1], args[2], args[3]); err != nil {
					return err
				}
				cmd.Println("Password changed, sign in with the new one")
				return nil
			},
		},
	)
	return cmd
}

func logoutCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app().chat.Logout(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Signed out")
			return nil
		},
	}
}

func selfCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "self",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			self, err := app().chat.LoadSelf(cmd.Context())
			if err != nil {
				return err
			}
			writeProfile(cmd.OutOrStdout(), self, self.IsOnline.Bool())
			if url := models.ImageURL(app().cfg.APIURL, self.Image); url != "" {
				cmd.Printf("  photo: %s\n", url)
			}
			return nil
		},
	}
}

func onlineCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "online LAT LNG",
		Short: "Show yourself on the map at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := parseCoordinate(args[0], "latitude")
			if err != nil {
				return err
			}
			lng, err := parseCoordinate(args[1], "longitude")
			if err != nil {
				return err
			}
			a := app()
			if _, err := a.chat.LoadSelf(cmd.Context()); err != nil {
				return err
			}
			return a.chat.GoOnline(cmd.Context(), lat, lng)
		},
	}
}

func offlineCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Hide yourself from the map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().chat.GoOffline(cmd.Context())
		},
	}
}

func sendCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "send USER_ID TEXT...",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return err
			}
			if err := app().chat.SendMessage(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			cmd.Println("Sent")
			return nil
		},
	}
}

func readCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "read USER_ID",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return err
			}
			a := app()
			if err := a.chat.Refresh(cmd.Context()); err != nil {
				return err
			}
			if err := a.chat.OpenChat(cmd.Context(), id); err != nil {
				return err
			}
			writeChat(cmd.OutOrStdout(), a.chat.View())
			return nil
		},
	}
}

func removeCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "remove USER_ID",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return err
			}
			return app().chat.RemoveConversation(cmd.Context(), id)
		},
	}
}

func chatsCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations with unread counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.chat.Refresh(cmd.Context()); err != nil {
				return err
			}
			v := a.chat.View()
			if len(v.Conversations) == 0 {
				cmd.Println("No conversations yet")
				return nil
			}
			if v.BadgeText != "" {
				cmd.Printf("Unread: %s\n", v.BadgeText)
			}
			writeConversations(cmd.OutOrStdout(), v.Conversations)
			return nil
		},
	}
}

func usersCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List people online around you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			self, err := a.chat.LoadSelf(cmd.Context())
			if err != nil {
				return err
			}
			if !self.IsOnline.Bool() {
				cmd.Println("You are offline. Go online with `peoplemeet online LAT LNG` to see others.")
				return nil
			}
			if err := a.chat.RefreshPresence(cmd.Context()); err != nil {
				return err
			}
			markers := a.chat.View().Markers
			if len(markers) == 0 {
				cmd.Println("Nobody around right now")
				return nil
			}
			writeMarkers(cmd.OutOrStdout(), markers)
			return nil
		},
	}
}

func profileCommand(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit your profile",
	}

	var name, sex, description, thoughts string
	var age int
	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			self, err := a.chat.LoadSelf(cmd.Context())
			if err != nil {
				return err
			}
			// Unset flags keep the current value.
			flags := cmd.Flags()
			if !flags.Changed("name") {
				name = self.Name
			}
			if !flags.Changed("age") {
				age = self.Age.Value
			}
			if !flags.Changed("sex") {
				sex = self.Sex
			}
			if !flags.Changed("description") {
				description = self.Description
			}
			if !flags.Changed("thoughts") {
				thoughts = self.Thoughts
			}
			_, err = a.chat.UpdateProfile(cmd.Context(), name, age, sex, description, thoughts)
			return err
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().IntVar(&age, "age", 0, "age (18-100)")
	set.Flags().StringVar(&sex, "sex", "", "sex")
	set.Flags().StringVar(&description, "description", "", "about you")
	set.Flags().StringVar(&thoughts, "thoughts", "", "what's on your mind")

	image := &cobra.Command{
		Use:   "image PATH",
		Short: "Upload a square avatar image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a := app()
			p, err := a.chat.UploadImage(cmd.Context(), args[0], content)
			if err != nil {
				return err
			}
			cmd.Printf("Photo updated: %s\n", models.ImageURL(a.cfg.APIURL, p.Image))
			return nil
		},
	}

	cmd.AddCommand(set, image)
	return cmd
}

func watchCommand(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll messages (and nearby people while online) until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().watch(cmd.Context())
		},
	}
}
