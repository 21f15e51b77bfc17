package e2e

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const adminAreasCSV = `iso,type,country,region,grid,name_en,name_es
lac,region,,,,Latin America,América Latina
ar,country,,lac,on-grid,Argentina,
br,country,,lac,on-grid,Brazil,Brasil
cl,country,,lac,on-grid,Chile,
asia,region,,,,Asia,
in,country,,asia,off-grid,India,
in-ka,state,in,,,Karnataka,
in-tn,state,in,,,Tamil Nadu,
`

const indexCSV = `id,type,parent,grid,weight,name_en,name_es
0,score,,,,Global score,Puntaje global
1,param,0,,0.4,Fundamentals,Fundamentos
2,param,0,,0.6,Opportunities,Oportunidades
101,ind,1,,,Power sector structure,
`

// 2015 is the current edition: AR and CL tie, BR has no data.
const edition2015CSV = `id,iso,score
0,ar,2.5
0,br,0
0,cl,2.5
0,in,1.75
0,in-ka,1.2
0,in-tn,2.1
1,ar,3
1,br,1.5
1,in,n/a
2,ar,1.25
2,in,2
101,ar,4.123456789
101,in,
`

const profilesCSV = "\ufeffiso,gdp,growth_rate,population\n" +
	"ar,540.2,0.031,43.4\n" +
	"br,1800.3,-0.038,\n"

const capacityCSV = `iso,sub_indicator,2012,2013
ar,Clean Energy,10.5,12
ar,Non-clean Energy,30,31
br,Clean Energy,80,n/a
`

// writeSourceTree lays out a source tree under dir: metadata, a 2014
// workbook, a 2015 CSV, a file that is not an edition, one chart and the
// profiles table.
func writeSourceTree(dir string) error {
	files := map[string]string{
		filepath.Join("meta", "admin_areas.csv"):      adminAreasCSV,
		filepath.Join("meta", "index.csv"):            indexCSV,
		filepath.Join("cs-core", "2015.csv"):          edition2015CSV,
		filepath.Join("cs-core", "README.txt"):        "editions go here",
		filepath.Join("cs-auxiliary", "2014-107.csv"): capacityCSV,
		filepath.Join("cs-profiles", "profiles.csv"):  profilesCSV,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return writeWorkbook(filepath.Join(dir, "cs-core", "2014.xlsx"))
}

// writeWorkbook writes the 2014 edition in the workbook layout: one sheet
// per indicator kind.
func writeWorkbook(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := map[string][][]interface{}{
		"score": {
			{"id", "iso", "score"},
			{0, "ar", 1.5},
			{0, "br", 2.25},
			{0, "in", 1.5},
			{0, "in-ka", 0.9},
		},
		"param": {
			{"id", "iso", "score"},
			{1, "ar", 2},
			{1, "br", 2.5},
		},
		"ind": {
			{"id", "iso", "score"},
			{101, "ar", 3.3},
		},
	}

	if err := f.SetSheetName("Sheet1", "score"); err != nil {
		return err
	}
	for _, name := range []string{"score", "param", "ind"} {
		if name != "score" {
			if _, err := f.NewSheet(name); err != nil {
				return err
			}
		}
		for i, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			r := row
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
