package cli

import (
	"github.com/spf13/cobra"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/model"
)

var (
	photoUsername       string
	photoStartDate      string
	photoEndDate        string
	photoElementType    string
	photoElementID      string
	photoPage           int
	photoLimit          int
	photoSort           []string
	photoNewDescription string
)

var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "List, inspect, edit and delete photos",
}

var photosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List photos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := action.ParseSortFlag(photoSort)
		if err != nil {
			return err
		}
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		page, err := c.svc.ListPhotos(cmd.Context(), c.sess, action.PhotoQuery{
			Page:           action.Page{Page: photoPage, Limit: photoLimit, Sort: sort},
			Username:       photoUsername,
			StartDate:      photoStartDate,
			EndDate:        photoEndDate,
			OsmElementType: photoElementType,
			OsmElementID:   photoElementID,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := render(out, page, photoHeaders, photoRows(page.Results)); err != nil {
			return err
		}
		renderMeta(out, page.Meta)
		return nil
	},
}

var photosShowCmd = &cobra.Command{
	Use:   "show <photo-id>",
	Short: "Show one photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		photo, err := c.svc.GetPhoto(cmd.Context(), c.sess, args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), photo, photoHeaders, photoRows([]model.Photo{*photo}))
	},
}

var photosEditCmd = &cobra.Command{
	Use:   "edit <photo-id>",
	Short: "Change a photo description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		photo, err := c.svc.UpdatePhotoDescription(cmd.Context(), c.sess, args[0], photoNewDescription)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), photo, photoHeaders, photoRows([]model.Photo{*photo}))
	},
}

var photosDeleteCmd = &cobra.Command{
	Use:   "delete <photo-id>",
	Short: "Delete a photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newCommandApp()
		if err != nil {
			return err
		}
		ok, err := a.confirmDelete(cmd.InOrStdin(), cmd.OutOrStdout(), "photo", args[0])
		if err != nil || !ok {
			a.Close()
			return err
		}
		c, err := a.login(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.svc.DeletePhoto(cmd.Context(), c.sess, args[0]); err != nil {
			return err
		}
		done(cmd.OutOrStdout(), "Photo "+args[0]+" deleted")
		return nil
	},
}

func init() {
	f := photosListCmd.Flags()
	f.StringVar(&photoUsername, "username", "", "Filter by OSM display name")
	f.StringVar(&photoStartDate, "start-date", "", "Created on or after (YYYY-MM-DD)")
	f.StringVar(&photoEndDate, "end-date", "", "Created on or before (YYYY-MM-DD)")
	f.StringVar(&photoElementType, "osm-element-type", "", "Filter by OSM element type")
	f.StringVar(&photoElementID, "osm-element-id", "", "Filter by OSM element id")
	f.IntVar(&photoPage, "page", 0, "Page number")
	f.IntVar(&photoLimit, "limit", 0, "Results per page")
	f.StringSliceVar(&photoSort, "sort", nil, "Sort as field:asc|desc, repeatable")

	photosEditCmd.Flags().StringVarP(&photoNewDescription, "description", "d", "", "New description")
	_ = photosEditCmd.MarkFlagRequired("description")

	photosCmd.AddCommand(photosListCmd, photosShowCmd, photosEditCmd, photosDeleteCmd)
	rootCmd.AddCommand(photosCmd)
}
