// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleFaint  = lipgloss.NewStyle().Faint(true)
	stylePrompt = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	styleLabel  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleStop   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	styleCursor = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
)
