// Package templates embeds the default attendance sheet layout.
package templates

import _ "embed"

// Attendance is the default sheet template. It must contain the placeholders
// {{logo}}, {{tahun}}, {{pelatih}}, {{jumlahTanggal}}, {{headerTanggal}} and {{barisSiswa}}.
//
//go:embed attendance.html
var Attendance string
