package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(10)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

func styleRows(row, col int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}

func renderCredentials(creds []vault.Credential, folders []vault.Folder) string {
	names := make(map[int64]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(styleRows).
		Headers("ID", "SERVICE", "USERNAME", "EMAIL", "FOLDER", "MODIFIED")
	for _, c := range creds {
		folder := ""
		if c.FolderID != nil {
			folder = names[*c.FolderID]
		}
		t.Row(
			strconv.FormatInt(c.ID, 10),
			c.ServiceName,
			c.Username,
			c.Email,
			folder,
			c.LastModified.Local().Format("2006-01-02 15:04"),
		)
	}
	return t.String()
}

func renderFolders(folders []vault.Folder) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(styleRows).
		Headers("ID", "NAME")
	for _, f := range folders {
		t.Row(strconv.FormatInt(f.ID, 10), f.Name)
	}
	return t.String()
}

// renderCredential prints one record. The password is masked unless show is set.
func renderCredential(c vault.Credential, folder string, show bool) string {
	pw := "********"
	if show {
		pw = c.Password
	}
	rows := [][2]string{
		{"service", c.ServiceName},
		{"username", c.Username},
		{"email", c.Email},
		{"password", pw},
		{"url", c.URL},
		{"notes", c.Notes},
		{"folder", folder},
		{"modified", c.LastModified.Local().Format("2006-01-02 15:04:05")},
	}
	out := ""
	for _, r := range rows {
		out += lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), r[1]) + "\n"
	}
	return out
}
