// Package registry loads the xkeyboard-config XML registry that declares the
// legal model, layout, variant and option vocabulary of a rule-set.
//
// A registry file looks like:
//
//	<xkbConfigRegistry version="1.1">
//	  <modelList>
//	    <model><configItem><name>pc105</name></configItem></model>
//	  </modelList>
//	  <layoutList>
//	    <layout>
//	      <configItem><name>us</name></configItem>
//	      <variantList>
//	        <variant><configItem><name>intl</name></configItem></variant>
//	      </variantList>
//	    </layout>
//	  </layoutList>
//	  <optionList>
//	    <group allowMultipleSelection="true">
//	      <configItem><name>grp</name></configItem>
//	      <option><configItem><name>grp:lwin_switch</name></configItem></option>
//	    </group>
//	  </optionList>
//	</xkbConfigRegistry>
//
// Several files (for example evdev.xml and evdev.extras.xml) are merged into
// a single Snapshot. Axes left empty after merging fall back to the RMLVO
// defaults so the combination space is never empty.
package registry
